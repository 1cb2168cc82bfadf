package uow

import (
	"context"

	"rwa-lending-gateway/internal/domain/submission"
)

type Repos struct {
	Submissions submission.Repository
}

type UnitOfWork interface {
	// locks the submission by tx hash first, then passes it in
	WithinSubmissionTx(ctx context.Context, txHash string, fn func(r Repos, s *submission.Submission) error) error
}
