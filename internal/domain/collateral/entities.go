package collateral

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrTransactionFailed = errors.New("transaction failed on-chain")
)

// Token is one tokenized real-estate asset from the account's
// RealEstateCollection resource.
type Token struct {
	ID                  string          `json:"id"`
	PropertyValue       decimal.Decimal `json:"property_value"`
	LockedForCollateral bool            `json:"locked_for_collateral"`
	LoanAmount          decimal.Decimal `json:"loan_amount"`
}

// HasActiveLoan reports whether a loan was already taken against the token.
func (t Token) HasActiveLoan() bool { return t.LoanAmount.IsPositive() }

// Label renders the token the way the selection list shows it.
func (t Token) Label() string {
	s := "Token ID: " + t.ID + " - Value: " + t.PropertyValue.String() + " APT"
	if t.LockedForCollateral {
		s += " (Locked)"
	}
	if t.HasActiveLoan() {
		s += " (Loan Active)"
	}
	return s
}

// FindToken returns a copy of the token with the given id.
func FindToken(tokens []Token, id string) (*Token, bool) {
	for i := range tokens {
		if tokens[i].ID == id {
			t := tokens[i]
			return &t, true
		}
	}
	return nil, false
}

const EntryFunctionPayloadType = "entry_function_payload"

// EntryFunctionPayload names a fully-qualified entry function and its
// positional arguments.
type EntryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// PendingTransaction is what the wallet hands back after submission.
type PendingTransaction struct {
	Hash string `json:"hash"`
}

// Transaction is the finality view of a submitted transaction.
type Transaction struct {
	Hash     string `json:"hash"`
	Pending  bool   `json:"pending"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
	Version  string `json:"version,omitempty"`
}
