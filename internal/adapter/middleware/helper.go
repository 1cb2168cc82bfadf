package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id32 "rwa-lending-gateway/pkg/id"
)

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }

func buildKey(method, path, account, requestID string) string {
	return "idemp:origination:" + strings.ToLower(method) + ":" + path + ":" + account + ":" + requestID
}

// validReqID accepts a lowercase RFC 4122 UUID (v1-v5) or a 32-char hex id.
func validReqID(id string) bool {
	if id32.Valid32(id) {
		return true
	}
	if len(id) != 36 || strings.ToLower(id) != id {
		return false
	}
	u, err := uuid.Parse(id)
	return err == nil && u.Variant() == uuid.RFC4122 && u.Version() >= 1 && u.Version() <= 5
}

// parseAxRequestAt accepts epoch seconds, epoch milliseconds or RFC3339
// with a zone. Timestamps without a zone are rejected.
func parseAxRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + HeaderRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(HeaderRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}

// requestStamp is the validated pair of idempotency headers.
type requestStamp struct {
	ID string
	At time.Time
}

// readStamp checks both headers against now and the allowed clock skew.
func readStamp(h http.Header, now time.Time) (requestStamp, error) {
	reqID := strings.TrimSpace(h.Get(HeaderRequestID))
	switch {
	case reqID == "":
		return requestStamp{}, errors.New("missing " + HeaderRequestID)
	case !validReqID(reqID):
		return requestStamp{}, errors.New("invalid " + HeaderRequestID + " format")
	}
	at, err := parseAxRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return requestStamp{}, err
	}
	if at.Before(now.Add(-maxClockSkew)) || at.After(now.Add(maxClockSkew)) {
		return requestStamp{}, fmt.Errorf("%s too skewed", HeaderRequestAt)
	}
	return requestStamp{ID: reqID, At: at}, nil
}

// idempStore keeps entries in Redis: a provisional marker for lockTTL
// while the request runs, then the final response for ttl.
type idempStore struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// reserve claims key. false means another request holds or finished it.
func (s idempStore) reserve(ctx context.Context, key string, e idempEntry) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, s.lockTTL).Result()
}

func (s idempStore) load(ctx context.Context, key string) (idempEntry, error) {
	var e idempEntry
	v, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(v, &e)
	return e, err
}

func (s idempStore) commit(ctx context.Context, key string, e idempEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, s.ttl).Err()
}

// release frees key so the client may retry with the same request id.
func (s idempStore) release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
