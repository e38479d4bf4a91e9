package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/inventory-order-system/pkg/httpjson"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxBody = 1 << 20
)

// record is what a key holds: a pending claim while the first request runs,
// then the response it produced.
type record struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Location    string `json:"location,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Middleware replays the first response recorded for an Idempotency-Key.
// Requests without the header pass straight through. A key reused with a
// different body is rejected with 422. Server faults, panics and requests
// abandoned mid-flight release the key so the client can retry with it.
func (s *Store) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			rkey := "idem:http:" + r.Method + ":" + r.URL.Path + ":" + key

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
			if err != nil {
				httpjson.WriteMessage(w, http.StatusBadRequest, "invalid body", "invalid_request")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fp := fingerprint(r.Method, r.URL.Path, body)

			pending, _ := json.Marshal(record{Pending: true, Fingerprint: fp})
			claimed, err := s.rdb.SetNX(ctx, rkey, pending, s.pendingTTL).Result()
			if err != nil {
				log.Warn("idempotency store unavailable", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				s.replay(w, r, log, rkey, fp)
				return
			}

			// the follow-up writes must land even when the client has gone away
			bg := context.WithoutCancel(ctx)
			release := func() {
				if err := s.rdb.Del(bg, rkey).Err(); err != nil {
					log.Warn("idempotency release failed", "key", key, "err", err)
				}
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			done := false
			defer func() {
				if !done {
					release()
				}
			}()
			next.ServeHTTP(rec, r)
			done = true

			if rec.status >= http.StatusInternalServerError {
				release()
				return
			}
			b, err := json.Marshal(record{
				Fingerprint: fp,
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Location:    rec.Header().Get("Location"),
				Body:        rec.buf.Bytes(),
			})
			if err == nil {
				err = s.rdb.Set(bg, rkey, b, s.ttl).Err()
			}
			if err != nil {
				log.Warn("idempotency record failed", "key", key, "err", err)
				release()
			}
		})
	}
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + " " + path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) replay(w http.ResponseWriter, r *http.Request, log *slog.Logger, rkey, fp string) {
	raw, err := s.rdb.Get(r.Context(), rkey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		httpjson.WriteMessage(w, http.StatusConflict, "request with this idempotency key expired mid-flight, retry", "")
		return
	case err != nil:
		log.Error("idempotency lookup failed", "err", err)
		httpjson.WriteMessage(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Error("idempotency record corrupt", "err", err)
		httpjson.WriteMessage(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	if rec.Fingerprint != fp {
		httpjson.WriteMessage(w, http.StatusUnprocessableEntity, "idempotency key was already used with a different request", "invalid_request")
		return
	}
	if rec.Pending {
		httpjson.WriteMessage(w, http.StatusConflict, "request with this idempotency key is still in progress", "")
		return
	}

	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	if rec.Location != "" {
		w.Header().Set("Location", rec.Location)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}
