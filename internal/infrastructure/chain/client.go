// Package chain talks to an Aptos-style fullnode REST API.
package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"rwa-lending-gateway/internal/domain/collateral"
)

const (
	// CoinStoreResource holds the native coin balance of an account.
	CoinStoreResource = "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>"
	// coinDecimals converts octas to APT.
	coinDecimals = 8

	DefaultPollInterval = time.Second
)

// APIError is a non-2xx answer from the node.
type APIError struct {
	Status    int
	ErrorCode string
	Message   string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("chain api %d %s: %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("chain api %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == collateral.ErrNotFound && e.Status == http.StatusNotFound
}

// Config holds client configuration.
type Config struct {
	BaseURL      string
	Module       collateral.Module
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client implements collateral.ChainClient over REST.
type Client struct {
	baseURL      string
	module       collateral.Module
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewClient creates a new fullnode client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("chain base URL required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		module:       cfg.Module,
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: poll,
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &APIError{
			Status:    resp.StatusCode,
			ErrorCode: gjson.GetBytes(body, "error_code").String(),
			Message:   msg,
		}
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("chain api returned invalid JSON")
	}
	return body, nil
}

// GetAccountResource returns the raw JSON of one account resource.
func (c *Client) GetAccountResource(ctx context.Context, account, resourceType string) ([]byte, error) {
	path := "/v1/accounts/" + url.PathEscape(account) + "/resource/" + url.PathEscape(resourceType)
	return c.get(ctx, path)
}

// GetCollection reads data.tokens from the module's RealEstateCollection.
func (c *Client) GetCollection(ctx context.Context, account string) ([]collateral.Token, error) {
	raw, err := c.GetAccountResource(ctx, account, c.module.CollectionResource())
	if err != nil {
		return nil, err
	}
	return ParseTokens(gjson.GetBytes(raw, "data.tokens"))
}

// ParseTokens accepts u64 fields encoded either as strings or numbers.
func ParseTokens(list gjson.Result) ([]collateral.Token, error) {
	out := []collateral.Token{}
	if !list.Exists() {
		return out, nil
	}
	if !list.IsArray() {
		return nil, errors.New("collection tokens is not an array")
	}
	var perr error
	list.ForEach(func(_, t gjson.Result) bool {
		value, err := parseAmount(t.Get("property_value"))
		if err != nil {
			perr = fmt.Errorf("token %s property_value: %w", t.Get("id").String(), err)
			return false
		}
		loan, err := parseAmount(t.Get("loan_amount"))
		if err != nil {
			perr = fmt.Errorf("token %s loan_amount: %w", t.Get("id").String(), err)
			return false
		}
		out = append(out, collateral.Token{
			ID:                  t.Get("id").String(),
			PropertyValue:       value,
			LockedForCollateral: t.Get("locked_for_collateral").Bool(),
			LoanAmount:          loan,
		})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

func parseAmount(r gjson.Result) (decimal.Decimal, error) {
	if !r.Exists() || r.Type == gjson.Null || r.String() == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.String())
}

// GetBalance reads the native CoinStore and converts octas to APT.
func (c *Client) GetBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	raw, err := c.GetAccountResource(ctx, account, CoinStoreResource)
	if err != nil {
		return decimal.Zero, err
	}
	octas, err := parseAmount(gjson.GetBytes(raw, "data.coin.value"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("coin value: %w", err)
	}
	return octas.Shift(-coinDecimals), nil
}

// GetTransaction returns a transaction by hash.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*collateral.Transaction, error) {
	raw, err := c.get(ctx, "/v1/transactions/by_hash/"+url.PathEscape(hash))
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(raw)
	tx := &collateral.Transaction{
		Hash:     res.Get("hash").String(),
		Pending:  res.Get("type").String() == "pending_transaction",
		Success:  res.Get("success").Bool(),
		VMStatus: res.Get("vm_status").String(),
		Version:  res.Get("version").String(),
	}
	if tx.Hash == "" {
		tx.Hash = hash
	}
	return tx, nil
}

// WaitForTransaction polls until the transaction leaves the mempool or ctx
// is done. A hash the node has not indexed yet is retried.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (*collateral.Transaction, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		tx, err := c.GetTransaction(ctx, hash)
		switch {
		case err == nil && !tx.Pending:
			if !tx.Success {
				return tx, fmt.Errorf("%w: %s", collateral.ErrTransactionFailed, tx.VMStatus)
			}
			return tx, nil
		case err != nil && !errors.Is(err, collateral.ErrNotFound):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
