package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"quickcart-search/internal/search"
)

// ---------------------------------------------------------------------------
// Dependency interfaces
//
// Each interface captures exactly the methods this package needs.
// Callers (main, tests) inject the real implementations or fakes.
// ---------------------------------------------------------------------------

// ProductSearcher is the request-facing search contract.
type ProductSearcher interface {
	Search(ctx context.Context, q search.SearchQuery, sessionKey string) (*search.SearchResult, error)
}

// IndexAdmin is the operator-facing index management contract.
type IndexAdmin interface {
	ReindexAll(ctx context.Context, opts search.ReindexOptions) (int, error)
	ReindexCategory(ctx context.Context, categoryID string) (int, error)
	ReindexBrand(ctx context.Context, brandID string) (int, error)
	ReindexSeller(ctx context.Context, sellerID string) (int, error)
	IndexProduct(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Healthy() bool
}

// Handler holds every dependency the HTTP layer needs.
type Handler struct {
	Search ProductSearcher
	Index  IndexAdmin
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// SearchProducts — GET /api/search
//
// Query parameters: q, category, brand (repeatable), seller, price_min,
// price_max, rating_min, in_stock, attr.<slug> (repeatable), locale, sort,
// page, page_size. The session key for experiment bucketing comes from the
// X-Session-Key header, falling back to the session parameter.
//
// Malformed values degrade to defaults instead of rejecting the request;
// a degraded search backend yields an empty 200 response, never a 5xx.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := parseQuery(r)

	sessionKey := r.Header.Get("X-Session-Key")
	if sessionKey == "" {
		sessionKey = r.URL.Query().Get("session")
	}

	res, err := h.Search.Search(r.Context(), q, sessionKey)
	if err != nil {
		slog.Error("search failed",
			"component", "api",
			"term", q.Term,
			"error", err,
		)
		http.Error(w, "search engine error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func parseQuery(r *http.Request) search.SearchQuery {
	params := r.URL.Query()

	q := search.SearchQuery{
		Term:       params.Get("q"),
		CategoryID: params.Get("category"),
		SellerID:   params.Get("seller"),
		Locale:     params.Get("locale"),
		Sort:       search.SortKey(params.Get("sort")),
	}

	if brands := params["brand"]; len(brands) > 0 {
		q.BrandIDs = brands
	}
	q.PriceMin = parseFloat(params.Get("price_min"))
	q.PriceMax = parseFloat(params.Get("price_max"))
	q.RatingMin = parseFloat(params.Get("rating_min"))

	if v := params.Get("in_stock"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			q.InStock = &b
		}
	}
	if v := params.Get("page"); v != "" {
		q.Page, _ = strconv.Atoi(v)
	}
	if v := params.Get("page_size"); v != "" {
		q.PageSize, _ = strconv.Atoi(v)
	}

	for key, values := range params {
		slug, ok := strings.CutPrefix(key, "attr.")
		if !ok || slug == "" || len(values) == 0 {
			continue
		}
		if q.Attributes == nil {
			q.Attributes = map[string][]string{}
		}
		q.Attributes[slug] = values
	}

	return q
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// Healthz — GET /healthz
//
// Always 200: a degraded search backend is an advisory state, not a reason
// to kill the pod — the surrounding application keeps serving catalog
// traffic with empty search results. The ping has its own short timeout so
// a stalled cluster cannot hang the probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	_ = h.Index.Ping(r.Context())

	status := "ok"
	if !h.Index.Healthy() {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"search": status})
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

type reindexRequest struct {
	Scope     string `json:"scope"` // "all", "product", "category", "brand", "seller"
	ID        string `json:"id"`
	BatchSize int    `json:"batch_size"`
	DryRun    bool   `json:"dry_run"`
}

// AdminReindex — POST /api/admin/reindex
//
// Triggers a reindex synchronously: an operator explicitly asked and is
// waiting on the outcome, so this is the one path where backend failures
// propagate as a hard error instead of degrading silently.
func (h *Handler) AdminReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Scope == "" {
		req.Scope = "all"
	}

	if req.Scope != "all" && req.ID == "" {
		http.Error(w, "missing id for "+req.Scope+" scope", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var (
		count int
		err   error
	)
	switch req.Scope {
	case "all":
		count, err = h.Index.ReindexAll(ctx, search.ReindexOptions{
			BatchSize: req.BatchSize,
			DryRun:    req.DryRun,
		})
	case "product":
		err = h.Index.IndexProduct(ctx, req.ID)
		count = 1
	case "category":
		count, err = h.Index.ReindexCategory(ctx, req.ID)
	case "brand":
		count, err = h.Index.ReindexBrand(ctx, req.ID)
	case "seller":
		count, err = h.Index.ReindexSeller(ctx, req.ID)
	default:
		http.Error(w, "unknown scope: "+req.Scope, http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("admin reindex failed",
			"component", "api",
			"scope", req.Scope,
			"id", req.ID,
			"error", err,
		)
		http.Error(w, "reindex failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("admin reindex done",
		"component", "api",
		"scope", req.Scope,
		"id", req.ID,
		"documents", count,
		"dry_run", req.DryRun,
	)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"scope":     req.Scope,
		"documents": count,
		"dry_run":   req.DryRun,
	})
}
