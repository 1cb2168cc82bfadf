package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"rwa-lending-gateway/internal/infrastructure/logging"
)

const (
	testAccount = "0xbeef"
	testReqID   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	lockPath    = "/origination/lock"
)

// helper: new Echo with account + idempotency and a simple route
func setupEcho(rdb *redis.Client, ttl time.Duration, handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	g := e.Group("", RequireAccount(), Idempotency(IdempotencyConfig{Redis: rdb, TTL: ttl, Log: logging.Discard()}))
	g.POST(lockPath, handler)
	g.GET("/origination", handler) // for non-mutating bypass test
	return e
}

func mkJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func doReq(t *testing.T, e *echo.Echo, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func validHeaders() map[string]string {
	return map[string]string{
		HeaderRequestID:      testReqID,
		HeaderRequestAt:      time.Now().UTC().Format(time.RFC3339),
		HeaderAccountAddress: testAccount,
	}
}

func without(h map[string]string, key string) map[string]string {
	out := map[string]string{}
	for k, v := range h {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func with(h map[string]string, key, val string) map[string]string {
	out := without(h, key)
	out[key] = val
	return out
}

// okHandler is what the recorder captures and the store commits
func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func Test_BypassOnGET_NoIdempotencyHeaders(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()
	e := setupEcho(rdb, 30*time.Second, okHandler)

	rec := doReq(t, e, http.MethodGet, "/origination", nil, map[string]string{HeaderAccountAddress: testAccount})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func Test_ValidationFailures(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()
	e := setupEcho(rdb, 30*time.Second, okHandler)
	valid := validHeaders()

	cases := []struct {
		name string
		hdr  map[string]string
		want int
	}{
		{"missing request id", without(valid, HeaderRequestID), http.StatusBadRequest},
		{"invalid request id", with(valid, HeaderRequestID, "NOT-VALID"), http.StatusBadRequest},
		{"invalid request at", with(valid, HeaderRequestAt, "not-a-time"), http.StatusBadRequest},
		{"skewed request at", with(valid, HeaderRequestAt, time.Now().UTC().Add(-maxClockSkew-time.Minute).Format(time.RFC3339)), http.StatusBadRequest},
		{"missing account", without(valid, HeaderAccountAddress), http.StatusUnauthorized},
		{"invalid account", with(valid, HeaderAccountAddress, "0xNOPE"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doReq(t, e, http.MethodPost, lockPath, mkJSONBody(t, map[string]int{"x": 1}), tc.hdr)
			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func Test_HappyPath_Then_Replay(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()

	var calls atomic.Int32
	e := setupEcho(rdb, 2*time.Minute, func(c echo.Context) error {
		calls.Add(1)
		return okHandler(c)
	})
	h := validHeaders()

	rec1 := doReq(t, e, http.MethodPost, lockPath, mkJSONBody(t, map[string]any{"token_id": "7"}), h)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first request => want 200, got %d, body: %s", rec1.Code, rec1.Body.String())
	}

	rec2 := doReq(t, e, http.MethodPost, lockPath, mkJSONBody(t, map[string]any{"token_id": "7"}), h)
	if rec2.Code != http.StatusOK {
		t.Fatalf("replay => want 200, got %d, body: %s", rec2.Code, rec2.Body.String())
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", rec1.Body.String(), rec2.Body.String())
	}
	if rec2.Header().Get("Ax-Idempotent-Replay") != "true" {
		t.Fatal("replay header missing")
	}
	if calls.Load() != 1 {
		t.Fatalf("handler called %d times, want 1", calls.Load())
	}
}

func Test_KeyIsScopedByAccount(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()

	var calls atomic.Int32
	e := setupEcho(rdb, 2*time.Minute, func(c echo.Context) error {
		calls.Add(1)
		return c.JSON(http.StatusOK, map[string]string{"account": Account(c)})
	})
	body := []byte(`{}`)
	doReq(t, e, http.MethodPost, lockPath, bytes.NewReader(body), validHeaders())
	rec := doReq(t, e, http.MethodPost, lockPath, bytes.NewReader(body), with(validHeaders(), HeaderAccountAddress, "0xcafe"))
	if rec.Code != http.StatusOK || calls.Load() != 2 {
		t.Fatalf("second account should not replay: code=%d calls=%d", rec.Code, calls.Load())
	}
}

func Test_ServerError_IsNotStored(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "boom"})
	})

	rec := doReq(t, e, http.MethodPost, lockPath, bytes.NewReader([]byte(`{}`)), validHeaders())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
	if mr.Exists(buildKey(http.MethodPost, lockPath, testAccount, testReqID)) {
		t.Fatal("5xx response must not be kept")
	}
}

func Test_Conflict_When_InProgress(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, okHandler)

	body := []byte(`{"x":1}`)
	key := buildKey(http.MethodPost, lockPath, testAccount, testReqID)
	entry := idempEntry{
		InProgress:  true,
		BodySHA256:  bodyHash(body),
		RequestID:   testReqID,
		RequestAtMS: time.Now().UnixMilli(),
		CreatedAt:   time.Now().UTC(),
	}
	if ok, err := (idempStore{rdb: rdb, lockTTL: provisionalLockTTL}).reserve(context.Background(), key, entry); err != nil || !ok {
		t.Fatalf("seed provisional failed, ok=%v err=%v", ok, err)
	}

	rec := doReq(t, e, http.MethodPost, lockPath, bytes.NewReader(body), validHeaders())
	if rec.Code != http.StatusConflict {
		t.Fatalf("in-progress => want 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func Test_Conflict_When_SameReqID_DifferentBody(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, okHandler)

	key := buildKey(http.MethodPost, lockPath, testAccount, testReqID)
	final := idempEntry{
		Code:        http.StatusOK,
		Body:        []byte(`{"ok":true}`),
		BodySHA256:  bodyHash([]byte(`{"x":1}`)),
		RequestID:   testReqID,
		RequestAtMS: time.Now().UnixMilli(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := (idempStore{rdb: rdb, ttl: 5 * time.Minute}).commit(context.Background(), key, final); err != nil {
		t.Fatalf("seed final failed: %v", err)
	}

	rec := doReq(t, e, http.MethodPost, lockPath, bytes.NewReader([]byte(`{"x":2}`)), validHeaders())
	if rec.Code != http.StatusConflict {
		t.Fatalf("different body same reqID => want 409, got %d", rec.Code)
	}
}

func Test_StoreUnavailable_Returns503(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	e := setupEcho(rdb, time.Minute, okHandler)

	rec := doReq(t, e, http.MethodPost, lockPath, bytes.NewReader([]byte(`{}`)), validHeaders())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store unavailable => want 503, got %d", rec.Code)
	}
}

func Test_InProgressMarker_OutlivesLongWaits(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()

	const lockTTL = 11 * time.Minute
	key := buildKey(http.MethodPost, lockPath, testAccount, testReqID)
	var during time.Duration
	e := echo.New()
	g := e.Group("", RequireAccount(), Idempotency(IdempotencyConfig{
		Redis:   rdb,
		TTL:     time.Minute,
		LockTTL: lockTTL,
		Log:     logging.Discard(),
	}))
	g.POST(lockPath, func(c echo.Context) error {
		during = mr.TTL(key)
		return okHandler(c)
	})

	rec := doReq(t, e, http.MethodPost, lockPath, bytes.NewReader([]byte(`{}`)), validHeaders())
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if during != lockTTL {
		t.Fatalf("in-progress ttl = %v, want %v", during, lockTTL)
	}
	if got := mr.TTL(key); got != time.Minute {
		t.Fatalf("final ttl = %v, want %v", got, time.Minute)
	}
}
