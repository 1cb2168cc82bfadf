package origination

import (
	"errors"
	"time"
)

// Guard rejection codes.
const (
	CodeAlreadyLocked      = "already_locked"
	CodeLoanExists         = "loan_exists"
	CodeInvalidAmount      = "invalid_amount"
	CodeAmountExceedsValue = "amount_exceeds_value"
	CodeNotLocked          = "not_locked"
)

var (
	ErrNoSession   = errors.New("origination session not opened")
	ErrBusy        = errors.New("a transaction is already in flight")
	ErrNoSelection = errors.New("no collateral token selected")
	ErrIncomplete  = errors.New("select a token and enter an amount first")
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Notification is the transient, non-blocking message shown to the user.
type Notification struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WithCode tags the notification with a machine-readable reason.
func (n *Notification) WithCode(code string) *Notification {
	n.Code = code
	return n
}

func newNotification(l Level, msg string) *Notification {
	return &Notification{Level: l, Message: msg, CreatedAt: time.Now().UTC()}
}

func NewSuccess(msg string) *Notification { return newNotification(LevelSuccess, msg) }
func NewWarning(msg string) *Notification { return newNotification(LevelWarn, msg) }
func NewError(msg string) *Notification   { return newNotification(LevelError, msg) }

// FailureMessage formats a failed call: "<prefix>: <error or Unknown error>".
func FailureMessage(prefix string, err error) string {
	msg := "Unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return prefix + ": " + msg
}
