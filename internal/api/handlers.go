package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/feedcache"
)

// feedLabel reads the {label} path parameter. Labels containing "/" are
// sent escaped as %2F.
func (h *handlers) feedLabel(w http.ResponseWriter, r *http.Request) (string, bool) {
	label, err := url.PathUnescape(chi.URLParam(r, "label"))
	if err == nil {
		err = feedcache.Feed{Label: label}.Validate()
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_label", "label must be lowercase alphanumeric with hyphens or underscores, 1-4 segments")
		return "", false
	}
	return label, true
}

// GET /v1/health
func (h *handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.feeds.HealthCheck(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

// GET /v1/feeds
func (h *handlers) ListFeeds(w http.ResponseWriter, r *http.Request) {
	parts, err := h.feeds.Partitions(r.Context())
	if err != nil {
		writeClientError(w, err)
		return
	}
	if parts == nil {
		parts = []feedcache.PartitionStats{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"feeds": parts})
}

// GET /v1/feeds/{label}/items
func (h *handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	label, ok := h.feedLabel(w, r)
	if !ok {
		return
	}

	items, err := h.feeds.Items(r.Context(), label, ParseLimit(r, defaultLimit, h.maxItems))
	if err != nil {
		writeClientError(w, err)
		return
	}
	if items == nil {
		items = []feedcache.Item{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"label": label,
		"count": len(items),
		"items": items,
	})
}

// GET /v1/feeds/{label}/state
func (h *handlers) GetState(w http.ResponseWriter, r *http.Request) {
	label, ok := h.feedLabel(w, r)
	if !ok {
		return
	}

	st, err := h.feeds.State(r.Context(), label)
	if err != nil {
		writeClientError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// GET /v1/feeds/{label}/export
func (h *handlers) ExportFeed(w http.ResponseWriter, r *http.Request) {
	label, ok := h.feedLabel(w, r)
	if !ok {
		return
	}

	// Headers are committed by the first write; later failures truncate the body.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := h.feeds.Export(r.Context(), label, w); err != nil {
		writeClientError(w, err)
	}
}

// POST /v1/feeds/{label}/refresh
func (h *handlers) PostRefresh(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, h.feeds.Refresh)
}

// POST /v1/feeds/{label}/append
func (h *handlers) PostAppend(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, h.feeds.LoadMore)
}

func (h *handlers) load(w http.ResponseWriter, r *http.Request, run func(context.Context, string) (feedcache.Result, error)) {
	label, ok := h.feedLabel(w, r)
	if !ok {
		return
	}

	res, err := run(r.Context(), label)
	if err != nil {
		writeClientError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"label":             label,
		"cycle_id":          res.CycleID,
		"fetched":           res.Fetched,
		"end_of_pagination": res.EndOfPagination,
	})
}

// DELETE /v1/feeds/{label}
func (h *handlers) ClearFeed(w http.ResponseWriter, r *http.Request) {
	label, ok := h.feedLabel(w, r)
	if !ok {
		return
	}

	if err := h.feeds.Clear(r.Context(), label); err != nil {
		writeClientError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/items/{id}
func (h *handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "item id is required")
		return
	}

	item, err := h.feeds.Get(r.Context(), id)
	if err != nil {
		writeClientError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// writeClientError maps client errors onto HTTP statuses.
func writeClientError(w http.ResponseWriter, err error) {
	var (
		ve *feedcache.ValidationError
		le *feedcache.LoadError
	)
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "invalid_request", ve.Field+": "+ve.Message)
	case errors.Is(err, feedcache.ErrInvalidLabel):
		WriteError(w, http.StatusBadRequest, "invalid_label", err.Error())
	case errors.Is(err, feedcache.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, feedcache.ErrOffline):
		WriteError(w, http.StatusServiceUnavailable, "offline", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.As(err, &le) && le.Kind == feedcache.KindStorage:
		WriteError(w, http.StatusInternalServerError, "storage_error", err.Error())
	case errors.As(err, &le):
		WriteJSON(w, http.StatusBadGateway, ErrorResponse{
			Error: APIError{Code: "fetch_failed", Message: err.Error(), Retryable: le.Retryable()},
		})
	default:
		WriteError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
