package submissionmock

import (
	"context"
	"time"

	domain "rwa-lending-gateway/internal/domain/submission"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset reads return context.Canceled; unset writes are no-ops.
type Repo struct {
	CreateFn               func(ctx context.Context, s *domain.Submission) error
	SaveFn                 func(ctx context.Context, s *domain.Submission) error
	GetBySubmissionIDFn    func(ctx context.Context, submissionID string) (*domain.Submission, error)
	GetByTxHashForUpdateFn func(ctx context.Context, txHash string) (*domain.Submission, error)
	ListByAccountFn        func(ctx context.Context, account string, limit int) ([]domain.Submission, error)
	ListPendingFn          func(ctx context.Context, before time.Time, limit int) ([]domain.Submission, error)
}

func (m *Repo) Create(ctx context.Context, s *domain.Submission) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, s)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, s *domain.Submission) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, s)
	}
	return nil
}

func (m *Repo) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.Submission, error) {
	if m.GetBySubmissionIDFn != nil {
		return m.GetBySubmissionIDFn(ctx, submissionID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByTxHashForUpdate(ctx context.Context, txHash string) (*domain.Submission, error) {
	if m.GetByTxHashForUpdateFn != nil {
		return m.GetByTxHashForUpdateFn(ctx, txHash)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByAccount(ctx context.Context, account string, limit int) ([]domain.Submission, error) {
	if m.ListByAccountFn != nil {
		return m.ListByAccountFn(ctx, account, limit)
	}
	return nil, context.Canceled
}

func (m *Repo) ListPending(ctx context.Context, before time.Time, limit int) ([]domain.Submission, error) {
	if m.ListPendingFn != nil {
		return m.ListPendingFn(ctx, before, limit)
	}
	return nil, context.Canceled
}
