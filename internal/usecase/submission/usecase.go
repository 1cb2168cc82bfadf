package submission

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"rwa-lending-gateway/internal/domain/collateral"
	domain "rwa-lending-gateway/internal/domain/submission"
	"rwa-lending-gateway/internal/domain/uow"
	"rwa-lending-gateway/internal/infrastructure/metrics"
	"rwa-lending-gateway/pkg/id"
)

const (
	// reconcileBatch bounds the rows one pass looks at.
	reconcileBatch = 50
	// DefaultGrace keeps the reconciler away from waits still running on the request path.
	DefaultGrace = 2 * time.Minute
)

// Usecase owns the submission journal: every payload handed to the wallet
// is recorded here and later finalized from the chain's verdict.
type Usecase struct {
	repo  domain.Repository
	uow   uow.UnitOfWork
	chain collateral.ChainClient
	log   logrus.FieldLogger
	grace time.Duration
	now   func() time.Time
}

func NewUsecase(repo domain.Repository, tx uow.UnitOfWork, chain collateral.ChainClient, log logrus.FieldLogger) *Usecase {
	return &Usecase{
		repo:  repo,
		uow:   tx,
		chain: chain,
		log:   log,
		grace: DefaultGrace,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithGrace sets how old a pending row must be before the reconciler touches it.
func (u *Usecase) WithGrace(d time.Duration) *Usecase {
	if d >= 0 {
		u.grace = d
	}
	return u
}

// Record journals a payload accepted by the wallet under its tx hash.
func (u *Usecase) Record(ctx context.Context, account, tokenID string, p collateral.EntryFunctionPayload, txHash string) (*SubmissionDTO, error) {
	args, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, err
	}
	s := &domain.Submission{
		SubmissionID: id.NewID32(),
		Account:      account,
		Function:     p.Function,
		Arguments:    string(args),
		TokenID:      tokenID,
		TxHash:       txHash,
		State:        domain.StatePending,
		SubmittedAt:  u.now(),
	}
	if err := u.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	dto := toDTO(s)
	return &dto, nil
}

// Finalize settles the journal row for txHash. A row already settled
// returns domain.ErrInvalidTransition.
func (u *Usecase) Finalize(ctx context.Context, txHash string, success bool, reason string) error {
	err := u.uow.WithinSubmissionTx(ctx, txHash, func(r uow.Repos, s *domain.Submission) error {
		if err := s.Finalize(success, reason, u.now()); err != nil {
			return err
		}
		return r.Submissions.Save(ctx, s)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (u *Usecase) Get(ctx context.Context, submissionID string) (*SubmissionDTO, error) {
	s, err := u.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	dto := toDTO(s)
	return &dto, nil
}

// ListByAccount returns the newest submissions first.
func (u *Usecase) ListByAccount(ctx context.Context, account string, limit int) ([]SubmissionDTO, error) {
	rows, err := u.repo.ListByAccount(ctx, account, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SubmissionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

// ReconcilePending asks the chain about pending rows older than the grace
// period and settles the ones that reached a verdict.
func (u *Usecase) ReconcilePending(ctx context.Context) (*ReconcileReport, error) {
	rows, err := u.repo.ListPending(ctx, u.now().Add(-u.grace), reconcileBatch)
	if err != nil {
		return nil, err
	}
	rep := &ReconcileReport{Scanned: len(rows)}
	for _, s := range rows {
		log := u.log.WithFields(logrus.Fields{"tx_hash": s.TxHash, "account": s.Account, "function": s.Function})

		tx, err := u.chain.GetTransaction(ctx, s.TxHash)
		switch {
		case errors.Is(err, collateral.ErrNotFound):
			rep.Pending++
			continue
		case err != nil:
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			log.WithError(err).Warn("reconcile: transaction lookup failed")
			rep.Pending++
			continue
		case tx.Pending:
			rep.Pending++
			continue
		}

		if err := u.Finalize(ctx, s.TxHash, tx.Success, tx.VMStatus); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				// settled by the request path in the meantime
				continue
			}
			log.WithError(err).Error("reconcile: finalize failed")
			continue
		}
		if tx.Success {
			rep.Confirmed++
			metrics.RecordReconciled(string(domain.StateConfirmed))
		} else {
			rep.Failed++
			metrics.RecordReconciled(string(domain.StateFailed))
		}
		log.WithField("success", tx.Success).Info("reconciled submission")
	}
	return rep, nil
}

func decodeArguments(raw string) []any {
	out := []any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []any{}
	}
	return out
}
