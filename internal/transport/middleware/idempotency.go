package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

const (
	IdempotencyHeader       = "Idempotency-Key"
	IdempotencyReplayHeader = "Idempotent-Replayed"

	pendingMarker = "pending"

	maxFingerprintBody = 1 << 20
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Idempotency replays the stored response of a completed write with the same key. A request
// that is still running under the key gets 409, and so does a key reused with a different
// body. Keys are scoped to the actor.
type Idempotency struct {
	client redis.UniversalClient
	ttl    time.Duration
	lease  time.Duration
}

func NewIdempotency(client redis.UniversalClient, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{client: client, ttl: ttl, lease: time.Minute}
}

func (i *Idempotency) key(r *http.Request, k string) string {
	actor, _ := authz.ActorFromContext(r.Context())
	return "idem:" + actor.CompanyID + ":" + actor.UserID + ":" + r.Method + ":" + r.URL.Path + ":" + k
}

func (i *Idempotency) Middleware(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := r.Header.Get(IdempotencyHeader)
			if k == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if len(k) > 128 {
				base.WriteError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			fp, err := fingerprint(r)
			if err != nil {
				base.WriteError(w, http.StatusBadRequest, "request body is too large")
				return
			}

			ctx := r.Context()
			lg := logger.From(ctx)
			redisKey := i.key(r, k)

			acquired, err := i.client.SetNX(ctx, redisKey, pendingMarker+":"+fp, i.lease).Result()
			if err != nil {
				lg.Error("idempotency store unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				i.replay(ctx, w, base, redisKey, fp)
				return
			}

			rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Failures outside 4xx are not remembered, so the client may retry them.
			if rec.status >= 500 {
				_ = i.client.Del(context.WithoutCancel(ctx), redisKey).Err()
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
				Fingerprint: fp,
			})
			if err == nil {
				err = i.client.Set(context.WithoutCancel(ctx), redisKey, payload, i.ttl).Err()
			}
			if err != nil {
				lg.Error("failed to store idempotent response", "error", err)
			}
		})
	}
}

// fingerprint hashes the request body and puts it back for the handler. Multipart uploads
// are not fingerprinted.
func fingerprint(r *http.Request) (string, error) {
	if r.Body == nil || strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintBody+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxFingerprintBody {
		return "", errors.New("body exceeds fingerprint limit")
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func (i *Idempotency) replay(ctx context.Context, w http.ResponseWriter, base *transport.BaseHandler, redisKey, fp string) {
	raw, err := i.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) || (err == nil && strings.HasPrefix(string(raw), pendingMarker)) {
		base.WriteError(w, http.StatusConflict, "a request with this Idempotency-Key is in progress")
		return
	}
	if err != nil {
		base.WriteError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		base.WriteError(w, http.StatusInternalServerError, "corrupt idempotency record")
		return
	}
	if stored.Fingerprint != "" && fp != "" && stored.Fingerprint != fp {
		base.WriteError(w, http.StatusConflict, "Idempotency-Key reused with a different request")
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
