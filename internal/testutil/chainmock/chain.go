package chainmock

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"rwa-lending-gateway/internal/domain/collateral"
)

var (
	_ collateral.ChainClient = (*Chain)(nil)
	_ collateral.Wallet      = (*Wallet)(nil)
)

var errUnimplemented = errors.New("chainmock: method not implemented")

// Chain is a function-backed collateral.ChainClient.
type Chain struct {
	GetCollectionFn      func(ctx context.Context, account string) ([]collateral.Token, error)
	GetBalanceFn         func(ctx context.Context, account string) (decimal.Decimal, error)
	GetTransactionFn     func(ctx context.Context, hash string) (*collateral.Transaction, error)
	WaitForTransactionFn func(ctx context.Context, hash string) (*collateral.Transaction, error)
}

func (m *Chain) GetCollection(ctx context.Context, account string) ([]collateral.Token, error) {
	if m.GetCollectionFn != nil {
		return m.GetCollectionFn(ctx, account)
	}
	return nil, errUnimplemented
}

func (m *Chain) GetBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	if m.GetBalanceFn != nil {
		return m.GetBalanceFn(ctx, account)
	}
	return decimal.Zero, errUnimplemented
}

func (m *Chain) GetTransaction(ctx context.Context, hash string) (*collateral.Transaction, error) {
	if m.GetTransactionFn != nil {
		return m.GetTransactionFn(ctx, hash)
	}
	return nil, errUnimplemented
}

// WaitForTransaction defaults to an immediate success.
func (m *Chain) WaitForTransaction(ctx context.Context, hash string) (*collateral.Transaction, error) {
	if m.WaitForTransactionFn != nil {
		return m.WaitForTransactionFn(ctx, hash)
	}
	return &collateral.Transaction{Hash: hash, Success: true, VMStatus: "Executed successfully"}, nil
}

// Wallet records payloads and hands out the configured hash.
type Wallet struct {
	mu              sync.Mutex
	Calls           []collateral.EntryFunctionPayload
	SignAndSubmitFn func(ctx context.Context, account string, p collateral.EntryFunctionPayload) (*collateral.PendingTransaction, error)
}

func (m *Wallet) SignAndSubmit(ctx context.Context, account string, p collateral.EntryFunctionPayload) (*collateral.PendingTransaction, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, p)
	m.mu.Unlock()
	if m.SignAndSubmitFn != nil {
		return m.SignAndSubmitFn(ctx, account, p)
	}
	return &collateral.PendingTransaction{Hash: "0xhash"}, nil
}

// CallCount is safe to read while calls are in flight.
func (m *Wallet) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
