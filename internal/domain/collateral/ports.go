package collateral

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChainClient reads account resources and tracks transaction finality.
type ChainClient interface {
	// GetCollection returns the tokens held in the account's collection resource.
	GetCollection(ctx context.Context, account string) ([]Token, error)

	// GetBalance returns the account's native coin balance.
	GetBalance(ctx context.Context, account string) (decimal.Decimal, error)

	// GetTransaction returns the current state of a transaction by hash.
	// A hash the node has not seen yet yields ErrNotFound.
	GetTransaction(ctx context.Context, hash string) (*Transaction, error)

	// WaitForTransaction blocks until the transaction is committed or ctx is done.
	// A committed but failed transaction returns ErrTransactionFailed.
	WaitForTransaction(ctx context.Context, hash string) (*Transaction, error)
}

// Wallet signs and submits payloads on behalf of a connected account.
type Wallet interface {
	SignAndSubmit(ctx context.Context, account string, payload EntryFunctionPayload) (*PendingTransaction, error)
}

// Module builds payloads for the lending module's entry functions.
type Module struct {
	Address string
	Name    string
}

// FullName is "<address>::<name>".
func (m Module) FullName() string { return m.Address + "::" + m.Name }

// CollectionResource is the resource type holding the account's tokens.
func (m Module) CollectionResource() string { return m.FullName() + "::RealEstateCollection" }

func (m Module) entry(fn string) string { return m.FullName() + "::" + fn }

// BuildPayload mirrors the module-call convention: a function name,
// type arguments and positional arguments.
func BuildPayload(function string, typeArgs []string, args []any) EntryFunctionPayload {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []any{}
	}
	return EntryFunctionPayload{
		Type:          EntryFunctionPayloadType,
		Function:      function,
		TypeArguments: typeArgs,
		Arguments:     args,
	}
}

func (m Module) LockForCollateral(tokenID string) EntryFunctionPayload {
	return BuildPayload(m.entry("lock_for_collateral"), nil, []any{tokenID})
}

// TakeLoan passes the amount as a decimal string, the way u64 arguments
// travel over JSON.
func (m Module) TakeLoan(tokenID string, amount decimal.Decimal) EntryFunctionPayload {
	return BuildPayload(m.entry("take_loan"), nil, []any{tokenID, amount.String()})
}
