package mysql

import (
	"context"

	"rwa-lending-gateway/internal/domain/submission"
	"rwa-lending-gateway/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) WithinSubmissionTx(ctx context.Context, txHash string, fn func(r uow.Repos, s *submission.Submission) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := uow.Repos{Submissions: &SubmissionRepository{db: tx}}
		// lock the journal row up-front so the request path and the reconciler don't race
		s, err := r.Submissions.GetByTxHashForUpdate(ctx, txHash)
		if err != nil {
			return err
		}
		return fn(r, s)
	})
}
