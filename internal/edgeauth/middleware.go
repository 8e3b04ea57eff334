package edgeauth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visionedge/visionedge-cloud/internal/models"
)

type contextKey string

const edgeServerKey contextKey = "edge_server"

// CredentialStore resolves an edge key to its edge server record
type CredentialStore interface {
	GetEdgeServerByKey(ctx context.Context, edgeKey string) (*models.EdgeServer, error)
}

// Middleware authenticates edge server requests by verifying the HMAC
// signature headers against the stored credential pair.
type Middleware struct {
	store  CredentialStore
	window time.Duration
}

// NewMiddleware creates an edge authentication middleware
func NewMiddleware(store CredentialStore, window time.Duration) *Middleware {
	return &Middleware{store: store, window: window}
}

// Handler wraps an HTTP handler with edge authentication. Every failure
// mode answers with the same generic 401; the concrete reason only goes
// to the log so a probing client cannot distinguish a bad key from a bad
// signature or a stale timestamp.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		edgeKey := r.Header.Get(HeaderKey)
		tsHeader := r.Header.Get(HeaderTimestamp)
		signature := r.Header.Get(HeaderSignature)

		if edgeKey == "" || tsHeader == "" || signature == "" {
			m.reject(w, r, "missing authentication headers")
			return
		}

		timestamp, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			m.reject(w, r, "malformed timestamp")
			return
		}

		if !Fresh(timestamp, time.Now(), m.window) {
			m.reject(w, r, "timestamp outside replay window")
			return
		}

		edge, err := m.store.GetEdgeServerByKey(r.Context(), edgeKey)
		if err != nil {
			m.reject(w, r, "unknown edge key")
			return
		}

		// The signature covers the raw body bytes, so read them before
		// any handler touches the stream, then hand the handler a
		// replacement reader.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			m.reject(w, r, "read body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if !Verify(edge.EdgeSecret, r.Method, r.URL.Path, timestamp, body, signature) {
			m.reject(w, r, "signature mismatch")
			return
		}

		ctx := context.WithValue(r.Context(), edgeServerKey, edge)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	log.Warn().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Str("reason", reason).
		Msg("Edge authentication failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}

// EdgeFromContext returns the authenticated edge server stored by the
// middleware
func EdgeFromContext(ctx context.Context) (*models.EdgeServer, bool) {
	edge, ok := ctx.Value(edgeServerKey).(*models.EdgeServer)
	return edge, ok
}
