package uowmock

import (
	"context"
	"errors"

	"rwa-lending-gateway/internal/domain/submission"
	"rwa-lending-gateway/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinSubmissionTxFn func(ctx context.Context, txHash string, fn func(r uow.Repos, s *submission.Submission) error) error
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinSubmissionTx(fn func(context.Context, string, func(uow.Repos, *submission.Submission) error) error) *UoW {
	m.WithinSubmissionTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Passthrough runs callbacks directly against repos, loading the row by
// hash through GetByTxHashForUpdate.
func Passthrough(repos uow.Repos) *UoW {
	return New().
		WithWithinSubmissionTx(func(ctx context.Context, txHash string, fn func(uow.Repos, *submission.Submission) error) error {
			s, err := repos.Submissions.GetByTxHashForUpdate(ctx, txHash)
			if err != nil {
				return err
			}
			return fn(repos, s)
		})
}

// Methods implementing UnitOfWork
func (m *UoW) WithinSubmissionTx(ctx context.Context, txHash string, fn func(r uow.Repos, s *submission.Submission) error) error {
	if m.WithinSubmissionTxFn != nil {
		return m.WithinSubmissionTxFn(ctx, txHash, fn)
	}
	return errUnimplemented
}
