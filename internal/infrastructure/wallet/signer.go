// Package wallet forwards payloads to an external signer that holds the
// account keys and submits on the account's behalf.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"rwa-lending-gateway/internal/domain/collateral"
)

// Signer implements collateral.Wallet against POST {base}/sign-and-submit.
type Signer struct {
	baseURL    string
	httpClient *http.Client
}

func NewSigner(baseURL string, timeout time.Duration) (*Signer, error) {
	if baseURL == "" {
		return nil, errors.New("wallet URL required")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Signer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type signRequest struct {
	Sender  string                          `json:"sender"`
	Payload collateral.EntryFunctionPayload `json:"payload"`
}

func (s *Signer) SignAndSubmit(ctx context.Context, account string, payload collateral.EntryFunctionPayload) (*collateral.PendingTransaction, error) {
	body, err := json.Marshal(signRequest{Sender: account, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sign-and-submit", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// the signer reports user rejections and simulation failures here
		msg := gjson.GetBytes(raw, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("wallet rejected transaction (%d): %s", resp.StatusCode, msg)
	}

	hash := gjson.GetBytes(raw, "hash").String()
	if hash == "" {
		return nil, errors.New("wallet response missing transaction hash")
	}
	return &collateral.PendingTransaction{Hash: hash}, nil
}
