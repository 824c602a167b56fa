package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voltonic-power/internal/learner"
	"voltonic-power/internal/models"
	"voltonic-power/internal/repository"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PowerReader in-memory engine views
type PowerReader interface {
	PowerModes() []models.BuildingPowerConfig
	RiskySchedules(minRate float64) []models.CancellationPattern
	AnalyzeRoom(roomID int64, weekday *int) (learner.Analysis, error)
}

// ActionReader audit trail queries
type ActionReader interface {
	ListActions(ctx context.Context, filters repository.ActionFilters, page, size int) ([]models.AutonomousAction, int, error)
	GetCutoffAccuracy(ctx context.Context, since time.Time) (*repository.CutoffAccuracy, error)
}

// PowerHandler reporting endpoints
type PowerHandler struct {
	power          PowerReader
	actions        ActionReader
	defaultMinRate float64
	logger         *zap.Logger
	now            func() time.Time
}

// NewPowerHandler defaultMinRate applies when min_rate is absent
func NewPowerHandler(power PowerReader, actions ActionReader, defaultMinRate float64, logger *zap.Logger) *PowerHandler {
	return &PowerHandler{
		power:          power,
		actions:        actions,
		defaultMinRate: defaultMinRate,
		logger:         logger,
		now:            time.Now,
	}
}

// ActionPage paginated audit trail
type ActionPage struct {
	Items []models.AutonomousAction `json:"items"`
	Total int                       `json:"total"`
	Page  int                       `json:"page"`
	Size  int                       `json:"size"`
}

// GetPowerModes GET /api/v1/power/modes
func (h *PowerHandler) GetPowerModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.power.PowerModes()))
}

// GetRiskySchedules GET /api/v1/power/risky-schedules?min_rate=0.5
func (h *PowerHandler) GetRiskySchedules(w http.ResponseWriter, r *http.Request) {
	minRate := h.defaultMinRate
	if s := r.URL.Query().Get("min_rate"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			writeJSON(w, http.StatusBadRequest, Fail("min_rate must be between 0 and 1"))
			return
		}
		minRate = v
	}
	writeJSON(w, http.StatusOK, Ok(h.power.RiskySchedules(minRate)))
}

// maxExportRows upper bound of one export
const maxExportRows = 10000

// ListActions GET /api/v1/power/actions?type=&start=&end=&room_id=&building_id=&page=&size=
func (h *PowerHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseActionFilters(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 20
	}

	items, total, err := h.actions.ListActions(r.Context(), filters, page, size)
	if err != nil {
		h.logger.Error("Failed to list autonomous actions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list actions"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(ActionPage{Items: items, Total: total, Page: page, Size: size}))
}

// ExportActions GET /api/v1/power/actions/export, same filters as ListActions
func (h *PowerHandler) ExportActions(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseActionFilters(w, r)
	if !ok {
		return
	}

	items, total, err := h.actions.ListActions(r.Context(), filters, 1, maxExportRows)
	if err != nil {
		h.logger.Error("Failed to list autonomous actions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list actions"))
		return
	}
	if total > len(items) {
		h.logger.Warn("Action export truncated",
			zap.Int("total", total),
			zap.Int("exported", len(items)),
		)
	}

	data, err := GenerateActionExport(items)
	if err != nil {
		h.logger.Error("GenerateActionExport failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=autonomous-actions.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseActionFilters writes a 400 and returns false on a malformed parameter
func parseActionFilters(w http.ResponseWriter, r *http.Request) (repository.ActionFilters, bool) {
	q := r.URL.Query()
	filters := repository.ActionFilters{}

	if s := q.Get("type"); s != "" {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filters.ActionTypes = append(filters.ActionTypes, models.ActionKind(strings.ToUpper(t)))
			}
		}
	}

	var err error
	if filters.StartTime, err = parseTimeParam(q.Get("start")); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid start: "+err.Error()))
		return filters, false
	}
	if filters.EndTime, err = parseTimeParam(q.Get("end")); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid end: "+err.Error()))
		return filters, false
	}
	if filters.RoomID, err = parseIDParam(q.Get("room_id")); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid room_id"))
		return filters, false
	}
	if filters.BuildingID, err = parseIDParam(q.Get("building_id")); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid building_id"))
		return filters, false
	}
	return filters, true
}

// GetRoomAnalysis GET /api/v1/power/rooms/{id}/analysis?weekday=0
func (h *PowerHandler) GetRoomAnalysis(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid room id"))
		return
	}

	var weekday *int
	if s := r.URL.Query().Get("weekday"); s != "" {
		d, err := strconv.Atoi(s)
		if err != nil || d < 0 || d > 6 {
			writeJSON(w, http.StatusBadRequest, Fail("weekday must be 0-6"))
			return
		}
		weekday = &d
	}

	analysis, err := h.power.AnalyzeRoom(roomID, weekday)
	if err != nil {
		if errors.Is(err, learner.ErrInsufficientData) {
			writeJSON(w, http.StatusOK, Warn(analysis, err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(analysis))
}

// GetCutoffAccuracy GET /api/v1/power/cutoff-accuracy?days=7
func (h *PowerHandler) GetCutoffAccuracy(w http.ResponseWriter, r *http.Request) {
	days := parseInt(r.URL.Query().Get("days"), 7)
	if days < 1 {
		days = 7
	}
	since := h.now().Add(-time.Duration(days) * 24 * time.Hour)

	res, err := h.actions.GetCutoffAccuracy(r.Context(), since)
	if err != nil {
		h.logger.Error("Failed to compute cutoff accuracy", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to compute accuracy"))
		return
	}
	if res.AccuracyPercent == nil {
		writeJSON(w, http.StatusOK, Warn(res, "no cutoffs in range"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// parseTimeParam accepts RFC3339 or unix seconds
func parseTimeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(sec, 0).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIDParam(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
