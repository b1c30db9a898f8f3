package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aryannaik/printrun-vault/internal/backend"
	"github.com/aryannaik/printrun-vault/internal/index"
	"github.com/aryannaik/printrun-vault/internal/render"
	"github.com/aryannaik/printrun-vault/internal/search"
	"github.com/aryannaik/printrun-vault/internal/vault"
)

// HealthFunc reports whether the backend is reachable.
type HealthFunc func(ctx context.Context) bool

// RefreshFunc starts an index refresh. It must not block.
type RefreshFunc func(force bool)

type Handlers struct {
	cache     *index.Cache
	catalogs  *vault.Catalogs
	lookup    *vault.Lookup
	health    HealthFunc
	refreshFn RefreshFunc
	logger    *zap.Logger
}

func NewHandlers(cache *index.Cache, lookup *vault.Lookup, health HealthFunc, refreshFn RefreshFunc, logger *zap.Logger) *Handlers {
	return &Handlers{
		cache:     cache,
		catalogs:  vault.NewCatalogs(cache),
		lookup:    lookup,
		health:    health,
		refreshFn: refreshFn,
		logger:    logger,
	}
}

func (h *Handlers) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	limit := search.MaxSuggestions
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n < limit {
		limit = n
	}

	results := h.catalogs.Current().SuggestN(query, limit)
	if results == nil {
		results = []index.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter 'q'"})
		return
	}

	entry, ok := h.catalogs.Current().Resolve(query)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": vault.ErrNoMatch.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type rowsResponse struct {
	Entry index.Entry         `json:"entry"`
	Meta  backend.ProductMeta `json:"meta"`
	Rows  []backend.Row       `json:"rows"`
}

func (h *Handlers) HandleRows(w http.ResponseWriter, r *http.Request) {
	entry, status, err := h.target(r)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	res, err := h.lookup.Fetch(r.Context(), entry)
	if err != nil {
		writeJSON(w, fetchStatus(err), map[string]any{
			"error":     err.Error(),
			"retryable": vault.IsRetryable(err),
		})
		return
	}

	rows := res.Rows
	if rows == nil {
		rows = []backend.Row{}
	}
	writeJSON(w, http.StatusOK, rowsResponse{Entry: entry, Meta: res.Meta, Rows: rows})
}

// HandleResults serves the rows as a ready-to-insert HTML fragment.
func (h *Handlers) HandleResults(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	entry, status, err := h.target(r)
	if err != nil {
		w.WriteHeader(status)
		render.Message(w, "No matching product.")
		return
	}

	res, err := h.lookup.Fetch(r.Context(), entry)
	if err != nil {
		w.WriteHeader(fetchStatus(err))
		render.Message(w, "Error loading data. Try again.")
		return
	}

	if err := render.HTML(w, res); err != nil {
		h.logger.Error("Render results failed", zap.Error(err))
	}
}

// target picks the product a rows request is about: an explicit code, or the
// best match for q.
func (h *Handlers) target(r *http.Request) (index.Entry, int, error) {
	cat := h.catalogs.Current()

	if code := r.URL.Query().Get("code"); code != "" {
		if entry, ok := cat.ByCode(code); ok {
			return entry, http.StatusOK, nil
		}
		// The local index may be behind the backend; let the backend decide.
		return index.Entry{Code: code}, http.StatusOK, nil
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		return index.Entry{}, http.StatusBadRequest, errors.New("missing query parameter 'code' or 'q'")
	}
	entry, ok := cat.Resolve(query)
	if !ok {
		return index.Entry{}, http.StatusNotFound, vault.ErrNoMatch
	}
	return entry, http.StatusOK, nil
}

func fetchStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

type statusResponse struct {
	IndexCount int    `json:"indexCount"`
	Version    string `json:"version"`
	UpdatedAt  string `json:"updatedAt"`
	BackendOK  bool   `json:"backendOk"`
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Current()
	updatedStr := ""
	if !snap.UpdatedAt.IsZero() {
		updatedStr = snap.UpdatedAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		IndexCount: snap.Len(),
		Version:    snap.Version,
		UpdatedAt:  updatedStr,
		BackendOK:  h.health(r.Context()),
	})
}

func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	h.refreshFn(force)

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "refresh started", "force": force})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
