package submission

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("submission not found")
	ErrInvalidTransition = errors.New("invalid submission state transition")
)

type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Submission journals one transaction handed to the wallet.
type Submission struct {
	ID           uint64         `gorm:"primaryKey;column:id" json:"-"`
	SubmissionID string         `gorm:"size:32;uniqueIndex:ux_submissions_submission_id" json:"submission_id"`
	Account      string         `gorm:"size:66;index:idx_submissions_account" json:"account"`
	Function     string         `gorm:"size:255" json:"function"`
	Arguments    string         `gorm:"type:text" json:"arguments"`
	TokenID      string         `gorm:"size:128" json:"token_id"`
	TxHash       string         `gorm:"size:66;index:idx_submissions_tx_hash" json:"tx_hash"`
	State        State          `gorm:"size:16;default:'pending';index:idx_submissions_state" json:"state"`
	Error        string         `gorm:"type:text" json:"error,omitempty"`
	SubmittedAt  time.Time      `gorm:"autoCreateTime" json:"submitted_at"`
	FinalizedAt  *time.Time     `json:"finalized_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Submission) TableName() string { return "submissions" }

// Finalize moves a pending submission to confirmed or failed.
func (s *Submission) Finalize(success bool, reason string, at time.Time) error {
	if s.State != StatePending {
		return ErrInvalidTransition
	}
	if success {
		s.State = StateConfirmed
		s.Error = ""
	} else {
		s.State = StateFailed
		s.Error = reason
	}
	t := at.UTC()
	s.FinalizedAt = &t
	return nil
}
