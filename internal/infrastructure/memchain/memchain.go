// Package memchain is an in-process stand-in for the fullnode and the
// wallet, used for local runs (CHAIN_MODE=memory) and tests.
package memchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"rwa-lending-gateway/internal/domain/collateral"
)

// Chain implements both collateral.ChainClient and collateral.Wallet.
type Chain struct {
	mu       sync.RWMutex
	log      logrus.FieldLogger
	poll     time.Duration
	tokens   map[string][]collateral.Token
	balances map[string]decimal.Decimal
	txs      map[string]*collateral.Transaction
	payloads []collateral.EntryFunctionPayload
	seq      int
	failNext string
}

func New(log logrus.FieldLogger) *Chain {
	return &Chain{
		log:      log,
		poll:     10 * time.Millisecond,
		tokens:   make(map[string][]collateral.Token),
		balances: make(map[string]decimal.Decimal),
		txs:      make(map[string]*collateral.Transaction),
	}
}

// Seed replaces an account's collection and balance.
func (c *Chain) Seed(account string, balance decimal.Decimal, tokens ...collateral.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[account] = append([]collateral.Token(nil), tokens...)
	c.balances[account] = balance
}

// FailNext makes the next submitted transaction abort with reason.
func (c *Chain) FailNext(reason string) {
	c.mu.Lock()
	c.failNext = reason
	c.mu.Unlock()
}

// Payloads returns every payload submitted so far.
func (c *Chain) Payloads() []collateral.EntryFunctionPayload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]collateral.EntryFunctionPayload(nil), c.payloads...)
}

func (c *Chain) GetCollection(_ context.Context, account string) ([]collateral.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tokens, ok := c.tokens[account]
	if !ok {
		return nil, fmt.Errorf("RealEstateCollection for %s: %w", account, collateral.ErrNotFound)
	}
	return append([]collateral.Token(nil), tokens...), nil
}

func (c *Chain) GetBalance(_ context.Context, account string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[account], nil
}

func (c *Chain) GetTransaction(_ context.Context, hash string) (*collateral.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.txs[hash]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", hash, collateral.ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (c *Chain) WaitForTransaction(ctx context.Context, hash string) (*collateral.Transaction, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		tx, err := c.GetTransaction(ctx, hash)
		if err == nil && !tx.Pending {
			if !tx.Success {
				return tx, fmt.Errorf("%w: %s", collateral.ErrTransactionFailed, tx.VMStatus)
			}
			return tx, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SignAndSubmit executes the payload immediately and records the outcome.
func (c *Chain) SignAndSubmit(_ context.Context, account string, payload collateral.EntryFunctionPayload) (*collateral.PendingTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	sum := sha256.Sum256([]byte(account + payload.Function + strconv.Itoa(c.seq)))
	hash := "0x" + hex.EncodeToString(sum[:])
	c.payloads = append(c.payloads, payload)

	status := "Executed successfully"
	var err error
	if c.failNext != "" {
		err = fmt.Errorf("%s", c.failNext)
		c.failNext = ""
	} else {
		err = c.apply(account, payload)
	}
	if err != nil {
		status = "Move abort: " + err.Error()
	}
	c.txs[hash] = &collateral.Transaction{
		Hash:     hash,
		Success:  err == nil,
		VMStatus: status,
		Version:  strconv.Itoa(c.seq),
	}

	c.log.WithFields(logrus.Fields{
		"account":  account,
		"function": payload.Function,
		"tx_hash":  hash,
		"status":   status,
	}).Debug("memchain: transaction executed")
	return &collateral.PendingTransaction{Hash: hash}, nil
}

func entryName(function string) string {
	if i := strings.LastIndex(function, "::"); i >= 0 {
		return function[i+2:]
	}
	return function
}

func (c *Chain) apply(account string, p collateral.EntryFunctionPayload) error {
	tokens := c.tokens[account]
	find := func() (*collateral.Token, error) {
		if len(p.Arguments) == 0 {
			return nil, fmt.Errorf("E_MISSING_ARGUMENT")
		}
		id := fmt.Sprint(p.Arguments[0])
		for i := range tokens {
			if tokens[i].ID == id {
				return &tokens[i], nil
			}
		}
		return nil, fmt.Errorf("E_TOKEN_NOT_FOUND")
	}

	switch entryName(p.Function) {
	case "lock_for_collateral":
		t, err := find()
		if err != nil {
			return err
		}
		if t.LockedForCollateral {
			return fmt.Errorf("E_ALREADY_LOCKED")
		}
		t.LockedForCollateral = true
		return nil
	case "take_loan":
		t, err := find()
		if err != nil {
			return err
		}
		if len(p.Arguments) < 2 {
			return fmt.Errorf("E_MISSING_ARGUMENT")
		}
		amount, err := decimal.NewFromString(fmt.Sprint(p.Arguments[1]))
		if err != nil {
			return fmt.Errorf("E_INVALID_AMOUNT")
		}
		switch {
		case !t.LockedForCollateral:
			return fmt.Errorf("E_NOT_LOCKED")
		case t.LoanAmount.IsPositive():
			return fmt.Errorf("E_LOAN_EXISTS")
		case amount.GreaterThanOrEqual(t.PropertyValue):
			return fmt.Errorf("E_INSUFFICIENT_COLLATERAL")
		}
		t.LoanAmount = amount
		c.balances[account] = c.balances[account].Add(amount)
		return nil
	default:
		return fmt.Errorf("E_UNKNOWN_FUNCTION")
	}
}
