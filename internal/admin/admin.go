// Package admin serves the vault operations as a loopback-only JSON API.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/maloquacious/docvault/internal/errs"
	"github.com/maloquacious/docvault/internal/logger"
	"github.com/maloquacious/docvault/internal/migrate"
	"github.com/maloquacious/docvault/internal/vault"
)

// Vault is the set of operations the admin API exposes.
type Vault interface {
	RunMigrations(ctx context.Context) (migrate.Result, error)
	StoreFile(ctx context.Context, path string) (int64, error)
	GetDocument(ctx context.Context) ([]byte, error)
	Status(ctx context.Context) (vault.Status, error)
}

// Options configures the handler.
type Options struct {
	Version    string // application version reported by /admin/status
	Log        logger.Logger
	OnShutdown func() // called after /admin/shutdown has responded; nil disables the route
}

// NewHandler returns the admin mux.
func NewHandler(v Vault, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.Discard
	}
	h := &handler{vault: v, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /ready", h.ready)

	mux.Handle("POST /admin/migrations", jsonOnly(http.HandlerFunc(h.runMigrations)))
	mux.Handle("POST /admin/documents", jsonOnly(http.HandlerFunc(h.storeFile)))
	mux.Handle("GET /admin/documents/first", jsonOnly(http.HandlerFunc(h.getDocument)))
	mux.Handle("GET /admin/status", jsonOnly(http.HandlerFunc(h.status)))
	if opts.OnShutdown != nil {
		mux.Handle("POST /admin/shutdown", jsonOnly(http.HandlerFunc(h.shutdown)))
	}
	return mux
}

type handler struct {
	vault Vault
	opts  Options
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	status, err := h.vault.Status(r.Context())
	if err != nil || status.State != "ready" {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

func (h *handler) runMigrations(w http.ResponseWriter, r *http.Request) {
	res, err := h.vault.RunMigrations(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	applied := res.Applied
	if applied == nil {
		applied = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    res.From,
		"to":      res.To,
		"applied": applied,
	})
}

func (h *handler) storeFile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.Path) == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "path is required")
		return
	}
	id, err := h.vault.StoreFile(r.Context(), payload.Path)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.vault.GetDocument(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	// []byte encodes as base64.
	writeJSON(w, http.StatusOK, map[string]any{
		"size":     len(doc),
		"document": doc,
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.vault.Status(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  h.opts.Version,
		"database": status,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) shutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		// give the response a moment to flush
		time.Sleep(200 * time.Millisecond)
		h.opts.OnShutdown()
	}()
}

// writeError turns a structured error into the JSON error shape.
func (h *handler) writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	if kind != errs.KindNotFound {
		h.opts.Log.Warn("admin request failed", "kind", kind, "err", err)
	}
	writeJSONError(w, statusFor(kind), string(kind), errs.Display(err))
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindSourceIO:
		return http.StatusBadRequest
	case errs.KindOpen:
		return http.StatusServiceUnavailable
	case errs.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// jsonOnly enforces JSON-only contract for admin routes.
func jsonOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept")
		if !strings.Contains(accept, "application/json") && accept != "" {
			writeJSONError(w, http.StatusNotAcceptable, "not_acceptable", "Accept must include application/json")
			return
		}
		if r.Method != http.MethodGet && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": msg,
	})
}
