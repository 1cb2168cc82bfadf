package submission

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s *Submission) error
	Save(ctx context.Context, s *Submission) error
	GetBySubmissionID(ctx context.Context, submissionID string) (*Submission, error)

	// Lock the row carrying this tx hash (FOR UPDATE) inside a transaction.
	GetByTxHashForUpdate(ctx context.Context, txHash string) (*Submission, error)

	// Newest first.
	ListByAccount(ctx context.Context, account string, limit int) ([]Submission, error)

	// Pending rows with a tx hash submitted before the cutoff, oldest first.
	ListPending(ctx context.Context, before time.Time, limit int) ([]Submission, error)
}
