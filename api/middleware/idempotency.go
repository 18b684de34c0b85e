package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/chatwoot-scheduler/api/responses"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	pkgredis "github.com/angelmondragon/chatwoot-scheduler/pkg/redis"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255

	createReplayTTL   = 24 * time.Hour
	deliveryReplayTTL = 7 * 24 * time.Hour

	// bounds how long a crashed request blocks its key
	inFlightTTL = 30 * time.Second
)

// replayTTL reports whether method+path is covered by Idempotency-Key replay
// and for how long a stored response is kept.
func replayTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	switch {
	case path == "/api/schedules":
		return createReplayTTL, true
	case strings.HasPrefix(path, "/api/schedules/") && strings.HasSuffix(path, "/delivery"):
		return deliveryReplayTTL, true
	default:
		return 0, false
	}
}

// storedResponse is what a replay writes back. Body is base64 in JSON.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// schedule creation and delivery reports. A key reused with a different
// request is rejected, and a key whose first request is still running is
// rejected too. Requests without the header pass through; 5xx answers are
// forgotten so the caller can retry with the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, covered := replayTTL(r.Method, routePath(r))
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if store == nil || !covered || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long").
					WithDetail("max", maxIdempotencyKeyLen))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := requestFingerprint(r, body)

			scope := r.Method + "|" + r.URL.Path
			responseKey := store.IdempotencyKey(scope, clientKey)
			lockKey := store.IdempotencyKey(scope+"|inflight", clientKey)

			prior, err := loadResponse(r, store, responseKey)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if prior != nil {
				if prior.Fingerprint != fingerprint {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				prior.replay(w)
				return
			}

			claimed, err := store.SetNX(ctx, lockKey, fingerprint, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
				return
			}
			defer func() {
				if delErr := store.Del(ctx, lockKey); delErr != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", delErr)
				}
			}()

			tee := &teeWriter{ResponseWriter: w}
			next.ServeHTTP(tee, r)
			if tee.statusCode() >= http.StatusInternalServerError {
				return
			}

			raw, err := json.Marshal(storedResponse{
				Status:      tee.statusCode(),
				ContentType: tee.Header().Get("Content-Type"),
				Body:        tee.body.Bytes(),
				Fingerprint: fingerprint,
			})
			if err == nil {
				_, err = store.SetNX(ctx, responseKey, string(raw), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotent response", err)
			}
		})
	}
}

func loadResponse(r *http.Request, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(r.Context(), key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	case raw == "":
		return nil, nil
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stored response")
	}
	return &stored, nil
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// routePath is the request path without a trailing slash. Middleware on a
// sub-router runs before chi resolves the final pattern, so matching is done
// on the concrete path.
func routePath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	if path := strings.TrimSuffix(r.URL.Path, "/"); path != "" {
		return path
	}
	return "/"
}

type teeWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (t *teeWriter) WriteHeader(code int) {
	if t.status == 0 {
		t.status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	t.body.Write(b)
	return t.ResponseWriter.Write(b)
}

func (t *teeWriter) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}
