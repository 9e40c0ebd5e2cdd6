package api

import (
	"fmt"
	"net/http"

	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/pkg/logger"
)

// ObservationsHandler serves stored SDO/HMI feature sets.
type ObservationsHandler struct {
	deps Dependencies
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(deps Dependencies) *ObservationsHandler {
	return &ObservationsHandler{deps: deps}
}

// HandleRange handles GET /sdo/hmi?start=&end= requests.
func (h *ObservationsHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err)
		return
	}

	obs, err := h.deps.Range(r.Context(), start, end)
	if err != nil {
		logger.Get().Named("api").Error(r.Context(), "observation range query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "query_failed", fmt.Errorf("%w: observations", ErrQuery))
		return
	}
	if obs == nil {
		obs = []model.Observation{}
	}
	writeJSON(w, http.StatusOK, obs)
}

// HandleLatest handles GET /sdo/hmi/latest requests. It answers 204 when
// nothing is stored yet.
func (h *ObservationsHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	obs, ok, err := h.deps.Latest(r.Context())
	if err != nil {
		logger.Get().Named("api").Error(r.Context(), "latest observation query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "query_failed", fmt.Errorf("%w: latest observation", ErrQuery))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}
