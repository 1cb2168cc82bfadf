package submission

import (
	"time"

	domain "rwa-lending-gateway/internal/domain/submission"
)

type SubmissionDTO struct {
	SubmissionID string     `json:"submission_id"`
	Account      string     `json:"account"`
	Function     string     `json:"function"`
	Arguments    []any      `json:"arguments"`
	TokenID      string     `json:"token_id"`
	TxHash       string     `json:"tx_hash"`
	State        string     `json:"state"`
	Error        string     `json:"error,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	FinalizedAt  *time.Time `json:"finalized_at,omitempty"`
}

// ReconcileReport summarises one reconciler pass.
type ReconcileReport struct {
	Scanned   int `json:"scanned"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

func toDTO(s *domain.Submission) SubmissionDTO {
	return SubmissionDTO{
		SubmissionID: s.SubmissionID,
		Account:      s.Account,
		Function:     s.Function,
		Arguments:    decodeArguments(s.Arguments),
		TokenID:      s.TokenID,
		TxHash:       s.TxHash,
		State:        string(s.State),
		Error:        s.Error,
		SubmittedAt:  s.SubmittedAt,
		FinalizedAt:  s.FinalizedAt,
	}
}
