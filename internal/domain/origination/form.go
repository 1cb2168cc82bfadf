package origination

import (
	"strings"

	"github.com/shopspring/decimal"

	"rwa-lending-gateway/internal/domain/collateral"
)

var (
	// MaxLoanToValue caps the displayed LTV percentage.
	MaxLoanToValue = decimal.NewFromInt(80)
	// DisplayInterestRate is an illustrative APR, not a loan term.
	DisplayInterestRate = decimal.NewFromInt(5)

	hundred = decimal.NewFromInt(100)
)

// ParseAmount reads the raw amount field. Empty or malformed input is not a number.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// LoanToValue is amount / value * 100 clamped to [0, MaxLoanToValue].
// A zero or negative value with a positive amount saturates at the cap.
func LoanToValue(amount, value decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	if !value.IsPositive() {
		return MaxLoanToValue
	}
	ltv := amount.Div(value).Mul(hundred)
	if ltv.GreaterThan(MaxLoanToValue) {
		return MaxLoanToValue
	}
	return ltv
}

// EstimatedRepayment is amount * (1 + rate/100) with two decimals, or "0"
// when no amount has been entered.
func EstimatedRepayment(raw string, rate decimal.Decimal) string {
	amount, ok := ParseAmount(raw)
	if !ok {
		return "0"
	}
	factor := decimal.NewFromInt(1).Add(rate.Div(hundred))
	return amount.Mul(factor).StringFixed(2)
}

// Form is the ephemeral loan request of one connected account.
type Form struct {
	Account         string
	Tokens          []collateral.Token
	Selected        *collateral.Token
	Amount          string
	LoanToValue     decimal.Decimal
	InterestRate    decimal.Decimal
	Loading         bool
	ValuationDialog bool
	// ValuationOpened counts how many times the dialog was opened.
	ValuationOpened int
	Balance         *decimal.Decimal
}

func NewForm(account string) *Form {
	return &Form{
		Account:      account,
		Tokens:       []collateral.Token{},
		LoanToValue:  decimal.Zero,
		InterestRate: DisplayInterestRate,
	}
}

// Select picks a token from the list; an unknown id clears the selection.
func (f *Form) Select(tokenID string) {
	t, ok := collateral.FindToken(f.Tokens, tokenID)
	if !ok {
		f.Selected = nil
		return
	}
	f.Selected = t
}

// SetAmount stores the raw input and recomputes LTV when a token is selected.
func (f *Form) SetAmount(raw string) {
	f.Amount = raw
	if f.Selected == nil {
		return
	}
	amount, _ := ParseAmount(raw)
	f.LoanToValue = LoanToValue(amount, f.Selected.PropertyValue)
}

// ReplaceTokens swaps in a fresh collection and rebinds the selection by id.
func (f *Form) ReplaceTokens(tokens []collateral.Token) {
	if tokens == nil {
		tokens = []collateral.Token{}
	}
	f.Tokens = tokens
	if f.Selected != nil {
		f.Select(f.Selected.ID)
	}
}

// MarkSelectedLocked flips the lock flag locally, in the list and the selection.
func (f *Form) MarkSelectedLocked() {
	if f.Selected == nil {
		return
	}
	f.Selected.LockedForCollateral = true
	for i := range f.Tokens {
		if f.Tokens[i].ID == f.Selected.ID {
			f.Tokens[i].LockedForCollateral = true
		}
	}
}

func (f *Form) OpenValuation() {
	f.ValuationDialog = true
	f.ValuationOpened++
}

func (f *Form) DismissValuation() { f.ValuationDialog = false }

// Clear drops the selection and the amount after a successful loan.
func (f *Form) Clear() {
	f.Selected = nil
	f.Amount = ""
	f.LoanToValue = decimal.Zero
}

func (f *Form) CanLock() bool {
	return !f.Loading && f.Selected != nil && !f.Selected.LockedForCollateral
}

func (f *Form) CanTakeLoan() bool {
	return !f.Loading && f.Amount != "" && f.Selected != nil && f.Selected.LockedForCollateral
}

func (f *Form) LockLabel() string {
	switch {
	case f.Loading:
		return "Processing..."
	case f.Selected != nil && f.Selected.LockedForCollateral:
		return "Already Locked"
	default:
		return "Lock Collateral"
	}
}

func (f *Form) LoanLabel() string {
	if f.Loading {
		return "Processing..."
	}
	return "Take Loan"
}

func (f *Form) EstimatedRepayment() string { return EstimatedRepayment(f.Amount, f.InterestRate) }

// CheckLoan runs the client-side guards in order. A non-nil notification
// means the request must not reach the network.
func (f *Form) CheckLoan() (decimal.Decimal, *Notification) {
	t := f.Selected
	if t.HasActiveLoan() {
		return decimal.Zero, NewError("A loan has already been taken for this NFT.").WithCode(CodeLoanExists)
	}
	amount, ok := ParseAmount(f.Amount)
	if !ok || !amount.IsPositive() {
		return decimal.Zero, NewError("Loan amount must be a positive number.").WithCode(CodeInvalidAmount)
	}
	if amount.GreaterThanOrEqual(t.PropertyValue) {
		return decimal.Zero, NewError("Loan amount must be less than the asset value.").WithCode(CodeAmountExceedsValue)
	}
	if !t.LockedForCollateral {
		return decimal.Zero, NewError("Collateral must be locked before taking a loan.").WithCode(CodeNotLocked)
	}
	return amount, nil
}
