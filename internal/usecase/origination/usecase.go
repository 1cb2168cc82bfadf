package origination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"rwa-lending-gateway/internal/domain/collateral"
	domain "rwa-lending-gateway/internal/domain/origination"
	"rwa-lending-gateway/internal/domain/submission"
	"rwa-lending-gateway/internal/infrastructure/metrics"
	submissionuc "rwa-lending-gateway/internal/usecase/submission"
)

const (
	msgAlreadyLocked = "This token is already locked for collateral."
	msgLocked        = "Collateral locked successfully!"
	msgLoanTaken     = "Loan taken successfully!"

	DefaultWaitTimeout = 2 * time.Minute
)

// Journal keeps a durable trail of what was handed to the wallet.
type Journal interface {
	Record(ctx context.Context, account, tokenID string, p collateral.EntryFunctionPayload, txHash string) (*submissionuc.SubmissionDTO, error)
	Finalize(ctx context.Context, txHash string, success bool, reason string) error
}

type Deps struct {
	Chain       collateral.ChainClient
	Wallet      collateral.Wallet
	Module      collateral.Module
	Guard       domain.InFlightGuard
	Feed        domain.NotificationFeed
	Journal     Journal
	Log         logrus.FieldLogger
	WaitTimeout time.Duration
}

type session struct {
	mu       sync.Mutex
	form     *domain.Form
	lastSeen time.Time
}

// Usecase drives one loan origination form per connected account.
type Usecase struct {
	chain       collateral.ChainClient
	wallet      collateral.Wallet
	module      collateral.Module
	guard       domain.InFlightGuard
	feed        domain.NotificationFeed
	journal     Journal
	log         logrus.FieldLogger
	waitTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewUsecase(d Deps) *Usecase {
	if d.WaitTimeout <= 0 {
		d.WaitTimeout = DefaultWaitTimeout
	}
	return &Usecase{
		chain:       d.Chain,
		wallet:      d.Wallet,
		module:      d.Module,
		guard:       d.Guard,
		feed:        d.Feed,
		journal:     d.Journal,
		log:         d.Log,
		waitTimeout: d.WaitTimeout,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// Open starts a fresh form for account and loads its collection. A failed
// fetch still opens the session, with an empty list and an error notification.
// A form with a transaction in flight is not replaced.
func (u *Usecase) Open(ctx context.Context, account string) (*ActionResult, error) {
	if u.inFlight(account) {
		return nil, domain.ErrBusy
	}
	f := domain.NewForm(account)
	res := &ActionResult{OK: true}

	tokens, err := u.fetchTokens(ctx, account)
	if err != nil {
		u.log.WithError(err).WithField("account", account).Error("fetch collateral tokens")
		res.OK = false
		res.Notification = domain.NewError(domain.FailureMessage("Error fetching collateral tokens", err))
	} else {
		f.ReplaceTokens(tokens)
	}
	if bal, err := u.chain.GetBalance(ctx, account); err == nil {
		f.Balance = &bal
	} else {
		u.log.WithError(err).WithField("account", account).Warn("fetch balance")
	}
	res.View = toView(f)

	u.mu.Lock()
	if prev, ok := u.sessions[account]; ok && prev.busy() {
		u.mu.Unlock()
		return nil, domain.ErrBusy
	}
	u.sessions[account] = &session{form: f, lastSeen: u.now()}
	u.mu.Unlock()

	u.notify(ctx, account, res.Notification)
	return res, nil
}

// Close discards the account's form.
func (u *Usecase) Close(_ context.Context, account string) {
	u.mu.Lock()
	delete(u.sessions, account)
	u.mu.Unlock()
}

func (u *Usecase) View(_ context.Context, account string) (*ViewDTO, error) {
	s, err := u.session(account)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return toView(s.form), nil
}

// Select picks a token by id; an unknown or empty id clears the selection.
func (u *Usecase) Select(_ context.Context, account, tokenID string) (*ViewDTO, error) {
	return u.edit(account, func(f *domain.Form) { f.Select(tokenID) })
}

// SetAmount stores the raw amount and recomputes the loan-to-value ratio.
func (u *Usecase) SetAmount(_ context.Context, account, raw string) (*ViewDTO, error) {
	return u.edit(account, func(f *domain.Form) { f.SetAmount(raw) })
}

func (u *Usecase) DismissValuation(_ context.Context, account string) (*ViewDTO, error) {
	s, err := u.session(account)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.DismissValuation()
	return toView(s.form), nil
}

// LockCollateral locks the selected token in the lending module and waits
// for finality. On success the valuation dialog opens.
func (u *Usecase) LockCollateral(ctx context.Context, account string) (*ActionResult, error) {
	s, err := u.session(account)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	f := s.form
	switch {
	case f.Loading:
		s.mu.Unlock()
		return nil, domain.ErrBusy
	case f.Selected == nil:
		s.mu.Unlock()
		return nil, domain.ErrNoSelection
	case f.Selected.LockedForCollateral:
		n := domain.NewWarning(msgAlreadyLocked).WithCode(domain.CodeAlreadyLocked)
		res := &ActionResult{Notification: n, View: toView(f)}
		s.mu.Unlock()
		metrics.RecordGuardRejection(n.Code)
		u.notify(ctx, account, n)
		return res, nil
	}
	held, err := u.begin(ctx, f)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	token := *f.Selected
	s.mu.Unlock()
	defer u.release(ctx, account, held)

	hash, err := u.submit(ctx, account, token.ID, u.module.LockForCollateral(token.ID))
	var tokens []collateral.Token
	var refreshErr error
	if err == nil {
		tokens, refreshErr = u.fetchTokens(context.WithoutCancel(ctx), account)
	}

	s.mu.Lock()
	f.Loading = false
	res := &ActionResult{TxHash: hash}
	if err != nil {
		res.Notification = domain.NewError(domain.FailureMessage("Error locking collateral", err))
	} else {
		res.OK = true
		res.Notification = domain.NewSuccess(msgLocked)
		if refreshErr != nil {
			u.log.WithError(refreshErr).WithField("account", account).Warn("refresh collateral tokens after lock")
		} else {
			f.ReplaceTokens(tokens)
		}
		// a stale or failed refresh must not show the token unlocked
		if f.Selected != nil && f.Selected.ID == token.ID {
			f.MarkSelectedLocked()
		}
		f.OpenValuation()
	}
	res.View = toView(f)
	s.mu.Unlock()

	u.notify(ctx, account, res.Notification)
	return res, nil
}

// TakeLoan borrows the entered amount against the selected token. The
// form guards run first and a rejected request never reaches the wallet.
func (u *Usecase) TakeLoan(ctx context.Context, account string) (*ActionResult, error) {
	s, err := u.session(account)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	f := s.form
	switch {
	case f.Loading:
		s.mu.Unlock()
		return nil, domain.ErrBusy
	case f.Selected == nil || f.Amount == "":
		s.mu.Unlock()
		return nil, domain.ErrIncomplete
	}
	amount, rejected := f.CheckLoan()
	if rejected != nil {
		res := &ActionResult{Notification: rejected, View: toView(f)}
		s.mu.Unlock()
		metrics.RecordGuardRejection(rejected.Code)
		u.notify(ctx, account, rejected)
		return res, nil
	}
	held, err := u.begin(ctx, f)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	token := *f.Selected
	s.mu.Unlock()
	defer u.release(ctx, account, held)

	hash, err := u.submit(ctx, account, token.ID, u.module.TakeLoan(token.ID, amount))

	var (
		tokens             []collateral.Token
		bal                decimal.Decimal
		refreshErr, balErr error
	)
	if err == nil {
		bg := context.WithoutCancel(ctx)
		bal, balErr = u.chain.GetBalance(bg, account)
		tokens, refreshErr = u.fetchTokens(bg, account)
	}

	s.mu.Lock()
	f.Loading = false
	res := &ActionResult{TxHash: hash}
	if err != nil {
		res.Notification = domain.NewError(domain.FailureMessage("Error taking loan", err))
	} else {
		res.OK = true
		res.Notification = domain.NewSuccess(msgLoanTaken)
		f.Clear()
		if balErr != nil {
			u.log.WithError(balErr).WithField("account", account).Warn("refresh balance after loan")
		} else {
			f.Balance = &bal
		}
		if refreshErr != nil {
			u.log.WithError(refreshErr).WithField("account", account).Warn("refresh collateral tokens after loan")
		} else {
			f.ReplaceTokens(tokens)
		}
	}
	res.View = toView(f)
	s.mu.Unlock()

	u.notify(ctx, account, res.Notification)
	return res, nil
}

// Collateral reads the account's tokens straight from the chain.
func (u *Usecase) Collateral(ctx context.Context, account string) ([]TokenDTO, error) {
	tokens, err := u.fetchTokens(ctx, account)
	if err != nil {
		return nil, err
	}
	return toTokenDTOs(tokens), nil
}

// Notifications returns the newest notifications first.
func (u *Usecase) Notifications(ctx context.Context, account string, limit int) ([]domain.Notification, error) {
	return u.feed.Recent(ctx, account, limit)
}

// EvictIdle drops forms untouched for longer than idle. Forms with a
// transaction in flight are kept.
func (u *Usecase) EvictIdle(_ context.Context, idle time.Duration) int {
	cutoff := u.now().Add(-idle)
	u.mu.Lock()
	defer u.mu.Unlock()

	n := 0
	for account, s := range u.sessions {
		if s.lastSeen.After(cutoff) {
			continue
		}
		if s.busy() {
			continue
		}
		delete(u.sessions, account)
		n++
	}
	return n
}

func (s *session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Loading
}

func (u *Usecase) inFlight(account string) bool {
	u.mu.Lock()
	s, ok := u.sessions[account]
	u.mu.Unlock()
	return ok && s.busy()
}

func (u *Usecase) session(account string) (*session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	s, ok := u.sessions[account]
	if !ok {
		return nil, domain.ErrNoSession
	}
	s.lastSeen = u.now()
	return s, nil
}

// edit applies a form input change; inputs are frozen while a transaction is in flight.
func (u *Usecase) edit(account string, fn func(f *domain.Form)) (*ViewDTO, error) {
	s, err := u.session(account)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.form.Loading {
		return nil, domain.ErrBusy
	}
	fn(s.form)
	return toView(s.form), nil
}

// begin takes the account's in-flight slot and returns the guard token that
// release must hand back. Caller holds the session lock.
func (u *Usecase) begin(ctx context.Context, f *domain.Form) (string, error) {
	held, ok, err := u.guard.Acquire(ctx, f.Account)
	if err != nil {
		return "", fmt.Errorf("acquire in-flight guard: %w", err)
	}
	if !ok {
		metrics.RecordGuardRejection("busy")
		return "", domain.ErrBusy
	}
	f.Loading = true
	return held, nil
}

func (u *Usecase) release(ctx context.Context, account, held string) {
	if err := u.guard.Release(context.WithoutCancel(ctx), account, held); err != nil {
		u.log.WithError(err).WithField("account", account).Error("release in-flight guard")
	}
}

// submit hands the payload to the wallet and waits for finality. Once the
// wallet accepted it the wait is detached from ctx; a wait that runs out
// leaves the journal row pending for the reconciler.
func (u *Usecase) submit(ctx context.Context, account, tokenID string, p collateral.EntryFunctionPayload) (string, error) {
	fn := functionName(p.Function)
	log := u.log.WithFields(logrus.Fields{"account": account, "function": fn, "token_id": tokenID})

	start := time.Now()
	pending, err := u.wallet.SignAndSubmit(ctx, account, p)
	if err != nil {
		metrics.RecordTransaction(fn, metrics.OutcomeSubmitError, time.Since(start))
		log.WithError(err).Error("submit transaction")
		return "", err
	}
	hash := pending.Hash
	log = log.WithField("tx_hash", hash)

	bg := context.WithoutCancel(ctx)
	if _, err := u.journal.Record(bg, account, tokenID, p, hash); err != nil {
		log.WithError(err).Warn("journal submission")
	}

	wctx, cancel := context.WithTimeout(bg, u.waitTimeout)
	defer cancel()
	_, err = u.chain.WaitForTransaction(wctx, hash)
	switch {
	case err == nil:
		metrics.RecordTransaction(fn, metrics.OutcomeConfirmed, time.Since(start))
		u.settle(bg, log, hash, true, "")
		log.Info("transaction confirmed")
		return hash, nil
	case errors.Is(err, collateral.ErrTransactionFailed):
		metrics.RecordTransaction(fn, metrics.OutcomeFailed, time.Since(start))
		u.settle(bg, log, hash, false, err.Error())
		log.WithError(err).Error("transaction failed")
		return hash, err
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordTransaction(fn, metrics.OutcomeTimeout, time.Since(start))
		log.Warn("transaction not final before timeout, left pending")
		return hash, fmt.Errorf("transaction %s not confirmed within %s", hash, u.waitTimeout)
	default:
		metrics.RecordTransaction(fn, metrics.OutcomeUnknown, time.Since(start))
		log.WithError(err).Error("wait for transaction")
		return hash, err
	}
}

func (u *Usecase) settle(ctx context.Context, log logrus.FieldLogger, hash string, success bool, reason string) {
	err := u.journal.Finalize(ctx, hash, success, reason)
	switch {
	case err == nil:
	case errors.Is(err, submission.ErrInvalidTransition):
		log.Debug("journal row already settled")
	default:
		log.WithError(err).Warn("settle journal row")
	}
}

// fetchTokens treats an account without a collection resource as empty.
func (u *Usecase) fetchTokens(ctx context.Context, account string) ([]collateral.Token, error) {
	tokens, err := u.chain.GetCollection(ctx, account)
	if errors.Is(err, collateral.ErrNotFound) {
		return []collateral.Token{}, nil
	}
	return tokens, err
}

func (u *Usecase) notify(ctx context.Context, account string, n *domain.Notification) {
	if n == nil || u.feed == nil {
		return
	}
	if err := u.feed.Push(context.WithoutCancel(ctx), account, *n); err != nil {
		u.log.WithError(err).WithField("account", account).Warn("push notification")
	}
}

// functionName keeps the entry function's last path segment as a metric label.
func functionName(full string) string {
	if i := strings.LastIndex(full, "::"); i >= 0 {
		return full[i+2:]
	}
	return full
}
