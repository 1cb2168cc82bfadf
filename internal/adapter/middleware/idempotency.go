package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"

	// default in-progress marker lifetime when IdempotencyConfig.LockTTL is zero
	provisionalLockTTL = 3 * time.Minute
	// Allowed client/server clock skew for Ax-Request-At (in UTC).
	maxClockSkew = 10 * time.Minute
)

// ---- Data types ----
type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	RequestID   string    `json:"request_id"`
	RequestAtMS int64     `json:"request_at_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// respRecorder tees the response so it can be replayed.
type respRecorder struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *respRecorder) WriteHeader(statusCode int) {
	r.code = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

type IdempotencyConfig struct {
	Redis *redis.Client
	// TTL keeps the final response around for replays.
	TTL time.Duration
	// LockTTL bounds the in-progress marker. Lock and loan requests wait
	// for chain finality, so it has to outlive the longest wait.
	LockTTL time.Duration
	Log logrus.FieldLogger
}

// Idempotency makes mutating requests replay-safe. The key is
// method + route + account + Ax-Request-Id; a retry with the same body
// replays the stored response, a different body is a conflict.
// Ax-Request-At must be epoch (s or ms) or RFC3339 with a zone.
// It runs after RequireAccount.
func Idempotency(cfg IdempotencyConfig) echo.MiddlewareFunc {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = provisionalLockTTL
	}
	store := idempStore{rdb: cfg.Redis, ttl: cfg.TTL, lockTTL: lockTTL}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			now := nowUTC()
			stamp, err := readStamp(req.Header, now)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			account := Account(c)
			if account == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing " + HeaderAccountAddress})
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bhash := bodyHash(body)

			key := buildKey(req.Method, c.Path(), account, stamp.ID)
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			ok, err := store.reserve(ctx, key, idempEntry{
				InProgress:  true,
				BodySHA256:  bhash,
				RequestID:   stamp.ID,
				RequestAtMS: stamp.At.UnixMilli(),
				CreatedAt:   now,
			})
			if err != nil {
				log.WithError(err).WithField("key", key).Error("idempotency store unavailable")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !ok {
				cur, err := store.load(ctx, key)
				if err != nil {
					log.WithError(err).WithField("key", key).Warn("load idempotency entry")
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
					return c.JSON(http.StatusConflict, map[string]string{"error": HeaderRequestID + " reused with different body"})
				}
				if !cur.InProgress && cur.Code != 0 && len(cur.Body) > 0 {
					c.Response().Header().Set("Ax-Idempotent-Replay", "true")
					return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
				}
				return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
			}

			rec := &respRecorder{ResponseWriter: c.Response().Writer, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			if rec.code >= http.StatusInternalServerError {
				// let the client retry a server failure with the same id
				if err := store.release(context.WithoutCancel(ctx), key); err != nil {
					log.WithError(err).WithField("key", key).Warn("release idempotency entry")
				}
				return nil
			}
			err = store.commit(context.WithoutCancel(req.Context()), key, idempEntry{
				Code:        rec.code,
				Body:        rec.buf.Bytes(),
				BodySHA256:  bhash,
				RequestID:   stamp.ID,
				RequestAtMS: stamp.At.UnixMilli(),
				CreatedAt:   nowUTC(),
			})
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("save idempotency entry")
			}
			return nil
		}
	}
}
