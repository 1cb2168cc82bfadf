package chain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rwa-lending-gateway/internal/domain/collateral"
)

var testModule = collateral.Module{Address: "0xcafe", Name: "lending"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL + "/", Module: testModule, PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestGetCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/0xabc/resource/0xcafe::lending::RealEstateCollection", r.URL.Path)
		_, _ = w.Write([]byte(`{"type":"0xcafe::lending::RealEstateCollection","data":{"tokens":[
			{"id":"1","property_value":"1000","locked_for_collateral":false,"loan_amount":"0"},
			{"id":"2","property_value":2500,"locked_for_collateral":true,"loan_amount":"400"}
		]}}`))
	})

	tokens, err := c.GetCollection(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "1", tokens[0].ID)
	assert.Equal(t, "1000", tokens[0].PropertyValue.String())
	assert.False(t, tokens[0].HasActiveLoan())
	assert.True(t, tokens[1].LockedForCollateral)
	assert.Equal(t, "2500", tokens[1].PropertyValue.String())
	assert.True(t, tokens[1].HasActiveLoan())
}

func TestGetCollection_EmptyAndMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	tokens, err := c.GetCollection(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	bad := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"tokens":[{"id":"1","property_value":"lots"}]}}`))
	})
	_, err = bad.GetCollection(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestGetCollection_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Resource not found","error_code":"resource_not_found"}`))
	})
	_, err := c.GetCollection(context.Background(), "0xabc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, collateral.ErrNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "resource_not_found", apiErr.ErrorCode)
	assert.Contains(t, err.Error(), "Resource not found")
}

func TestGetBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/0xabc/resource/"+CoinStoreResource, r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"coin":{"value":"150000000"}}}`))
	})
	bal, err := c.GetBalance(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "1.5", bal.String())
}

func TestWaitForTransaction_PendingThenSuccess(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions/by_hash/0xhash", r.URL.Path)
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found","error_code":"transaction_not_found"}`))
		case 2:
			_, _ = w.Write([]byte(`{"type":"pending_transaction","hash":"0xhash"}`))
		default:
			_, _ = w.Write([]byte(`{"type":"user_transaction","hash":"0xhash","success":true,"vm_status":"Executed successfully","version":"42"}`))
		}
	})

	tx, err := c.WaitForTransaction(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.True(t, tx.Success)
	assert.Equal(t, "42", tx.Version)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestWaitForTransaction_Failed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"user_transaction","hash":"0xhash","success":false,"vm_status":"Move abort: E_ALREADY_LOCKED"}`))
	})
	tx, err := c.WaitForTransaction(context.Background(), "0xhash")
	require.Error(t, err)
	assert.True(t, errors.Is(err, collateral.ErrTransactionFailed))
	assert.Contains(t, err.Error(), "E_ALREADY_LOCKED")
	assert.False(t, tx.Success)
}

func TestWaitForTransaction_ContextDone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"pending_transaction","hash":"0xhash"}`))
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.WaitForTransaction(ctx, "0xhash")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForTransaction_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	})
	_, err := c.WaitForTransaction(context.Background(), "0xhash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
