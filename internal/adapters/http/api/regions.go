package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/pkg/logger"
)

// RegionsHandler serves SWPC solar region reports.
type RegionsHandler struct {
	deps Dependencies
}

// NewRegionsHandler creates a new regions handler.
func NewRegionsHandler(deps Dependencies) *RegionsHandler {
	return &RegionsHandler{deps: deps}
}

// HandleRange handles GET /swpc/region?start=&end= requests. Bounds are
// compared by observed date.
func (h *RegionsHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err)
		return
	}

	regions, err := h.deps.RangeByDate(r.Context(), start, end)
	if err != nil {
		logger.Get().Named("api").Error(r.Context(), "region range query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "query_failed", fmt.Errorf("%w: regions", ErrQuery))
		return
	}
	writeRegions(w, regions)
}

// HandleRegion handles GET /swpc/region/{region} requests.
func (h *RegionsHandler) HandleRegion(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "region")
	region, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_region", fmt.Errorf("%w: region must be an integer, got %q", ErrBadRequest, raw))
		return
	}

	regions, err := h.deps.ByRegion(r.Context(), region)
	if err != nil {
		logger.Get().Named("api").Error(r.Context(), "region query failed",
			logger.Int("region", region), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "query_failed", fmt.Errorf("%w: region %d", ErrQuery, region))
		return
	}
	writeRegions(w, regions)
}

func writeRegions(w http.ResponseWriter, regions []model.Region) {
	if regions == nil {
		regions = []model.Region{}
	}
	writeJSON(w, http.StatusOK, regions)
}
