package origination

import (
	"github.com/shopspring/decimal"

	"rwa-lending-gateway/internal/domain/collateral"
	domain "rwa-lending-gateway/internal/domain/origination"
)

type TokenDTO struct {
	TokenID             string `json:"token_id"`
	PropertyValue       string `json:"property_value"`
	LockedForCollateral bool   `json:"locked_for_collateral"`
	LoanAmount          string `json:"loan_amount"`
	Label               string `json:"label"`
}

type DialogDTO struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ViewDTO is everything the origination screen renders.
type ViewDTO struct {
	Account            string     `json:"account"`
	Tokens             []TokenDTO `json:"tokens"`
	Selected           *TokenDTO  `json:"selected,omitempty"`
	Amount             string     `json:"amount"`
	LoanToValue        string     `json:"loan_to_value"`
	InterestRate       string     `json:"interest_rate"`
	EstimatedRepayment string     `json:"estimated_repayment"`
	Loading            bool       `json:"loading"`
	CanLock            bool       `json:"can_lock"`
	CanTakeLoan        bool       `json:"can_take_loan"`
	LockLabel          string     `json:"lock_label"`
	LoanLabel          string     `json:"loan_label"`
	ValuationDialog    *DialogDTO `json:"valuation_dialog,omitempty"`
	Balance            *string    `json:"balance,omitempty"`
}

// ActionResult is returned by lock and take-loan. OK is false when a guard
// or the chain rejected the request; Notification says why.
type ActionResult struct {
	OK           bool                 `json:"ok"`
	TxHash       string               `json:"tx_hash,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	View         *ViewDTO             `json:"view"`
}

type GuideStep struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Guide struct {
	Steps    []GuideStep `json:"steps"`
	Security []string    `json:"security_features"`
	Notice   string      `json:"notice"`
}

var valuationDialog = DialogDTO{
	Title: "Asset Valuation",
	Body:  "Asset valuation will be available soon. Our team is working on providing accurate valuations for your assets.",
}

var loanGuide = Guide{
	Steps: []GuideStep{
		{1, "Select NFT", "Choose an NFT from your collection to use as collateral."},
		{2, "Lock Collateral", "Lock your selected NFT as collateral for the loan."},
		{3, "Enter Loan Amount", "Specify the amount you wish to borrow against your collateral."},
		{4, "Review Terms", "Carefully review the loan terms, including interest rate and repayment period. " +
			"We are working with auditors on figuring out the fair value against your asset, this is an approximation."},
		{5, "Confirm and Sign", "Confirm the transaction and sign it using your wallet."},
		{6, "Receive Funds", "Once approved, the loan amount will be transferred to your wallet."},
	},
	Security: []string{
		"Smart Contract Audited",
		"Multi-Sig Governance",
		"Collateral Lockup Mechanism",
	},
	Notice: "Always verify transaction details before signing",
}

// LoanGuide returns the static how-to content shown next to the form.
func LoanGuide() Guide { return loanGuide }

func toTokenDTO(t collateral.Token) TokenDTO {
	return TokenDTO{
		TokenID:             t.ID,
		PropertyValue:       t.PropertyValue.String(),
		LockedForCollateral: t.LockedForCollateral,
		LoanAmount:          t.LoanAmount.String(),
		Label:               t.Label(),
	}
}

func toTokenDTOs(tokens []collateral.Token) []TokenDTO {
	out := make([]TokenDTO, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toTokenDTO(t))
	}
	return out
}

func toView(f *domain.Form) *ViewDTO {
	v := &ViewDTO{
		Account:            f.Account,
		Tokens:             toTokenDTOs(f.Tokens),
		Amount:             f.Amount,
		LoanToValue:        f.LoanToValue.StringFixed(2),
		InterestRate:       f.InterestRate.String(),
		EstimatedRepayment: f.EstimatedRepayment(),
		Loading:            f.Loading,
		CanLock:            f.CanLock(),
		CanTakeLoan:        f.CanTakeLoan(),
		LockLabel:          f.LockLabel(),
		LoanLabel:          f.LoanLabel(),
	}
	if f.Selected != nil {
		sel := toTokenDTO(*f.Selected)
		v.Selected = &sel
	}
	if f.ValuationDialog {
		d := valuationDialog
		v.ValuationDialog = &d
	}
	if f.Balance != nil {
		b := formatBalance(*f.Balance)
		v.Balance = &b
	}
	return v
}

func formatBalance(d decimal.Decimal) string { return d.StringFixed(4) }
