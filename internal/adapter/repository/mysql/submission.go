package mysql

import (
	"context"
	"time"

	submissionDomain "rwa-lending-gateway/internal/domain/submission"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct{ db *gorm.DB }

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *submissionDomain.Submission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) Save(ctx context.Context, s *submissionDomain.Submission) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SubmissionRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*submissionDomain.Submission, error) {
	var out submissionDomain.Submission
	res := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&out)
	return &out, res.Error
}

func (r *SubmissionRepository) GetByTxHashForUpdate(ctx context.Context, txHash string) (*submissionDomain.Submission, error) {
	var out submissionDomain.Submission
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tx_hash = ?", txHash).
		First(&out)
	return &out, res.Error
}

func (r *SubmissionRepository) ListByAccount(ctx context.Context, account string, limit int) ([]submissionDomain.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []submissionDomain.Submission
	res := r.db.WithContext(ctx).
		Where("account = ?", account).
		Order("submitted_at DESC, id DESC").
		Limit(limit).
		Find(&out)
	return out, res.Error
}

func (r *SubmissionRepository) ListPending(ctx context.Context, before time.Time, limit int) ([]submissionDomain.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []submissionDomain.Submission
	res := r.db.WithContext(ctx).
		Where("state = ? AND tx_hash <> '' AND submitted_at < ?", submissionDomain.StatePending, before).
		Order("submitted_at ASC, id ASC").
		Limit(limit).
		Find(&out)
	return out, res.Error
}
