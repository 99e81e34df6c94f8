package transit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/citytransit/backend/internal/auth"
)

// Handler handles HTTP requests for transit data.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new transit handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type errorResponse struct {
	Message string `json:"message"`
}

// ListLines handles GET /bus-lines
func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.ListLines(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, lines, http.StatusOK)
}

// GetLine handles GET /bus-lines/{route_no}
func (h *Handler) GetLine(w http.ResponseWriter, r *http.Request) {
	line, err := h.service.GetLine(r.Context(), r.PathValue("route_no"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, line, http.StatusOK)
}

// GetLineRoute handles GET /bus-lines/{route_no}/route
func (h *Handler) GetLineRoute(w http.ResponseWriter, r *http.Request) {
	var direction *int16
	if raw := r.URL.Query().Get("direction"); raw != "" {
		d, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			h.respondError(w, "invalid direction", http.StatusBadRequest)
			return
		}
		d16 := int16(d)
		direction = &d16
	}

	route, err := h.service.GetLineRoute(r.Context(), r.PathValue("route_no"), direction)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, route, http.StatusOK)
}

// CreateLineRequest is the request body for creating a line.
type CreateLineRequest struct {
	RouteNo string `json:"route_no"`
	Title   string `json:"title"`
	Stops   struct {
		Inward  []RouteStopInput `json:"inward"`
		Outward []RouteStopInput `json:"outward"`
	} `json:"stops"`
}

// CreateLine handles POST /bus-lines
func (h *Handler) CreateLine(w http.ResponseWriter, r *http.Request) {
	var req CreateLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	line, route, err := h.service.CreateLine(r.Context(), CreateLineInput{
		RouteNo: req.RouteNo,
		Title:   req.Title,
		Inward:  req.Stops.Inward,
		Outward: req.Stops.Outward,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.respondJSON(w, struct {
		RouteNo string      `json:"route_no"`
		Title   *string     `json:"title"`
		Stops   []RouteStop `json:"stops"`
	}{line.RouteNo, line.Title, route}, http.StatusCreated)
}

// UpdateLine handles PUT /bus-lines/{route_no}
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	line, err := h.service.UpdateLine(r.Context(), r.PathValue("route_no"), req.Title)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, line, http.StatusOK)
}

// ListStops handles GET /bus-stops
func (h *Handler) ListStops(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, "invalid offset", http.StatusBadRequest)
			return
		}
		offset = n
	}

	stops, err := h.service.ListStops(r.Context(), r.URL.Query().Get("query"), offset)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, stops, http.StatusOK)
}

// GetStop handles GET /bus-stops/{id}
func (h *Handler) GetStop(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.respondError(w, "invalid bus stop id", http.StatusBadRequest)
		return
	}

	stop, err := h.service.GetStop(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, stop, http.StatusOK)
}

// StopRequest is the request body for creating or updating a stop.
type StopRequest struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CreateStop handles POST /bus-stops
func (h *Handler) CreateStop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stop, err := h.service.CreateStop(r.Context(), StopInput{
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, stop, http.StatusCreated)
}

// UpdateStop handles PUT /bus-stops/{id}
func (h *Handler) UpdateStop(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.respondError(w, "invalid bus stop id", http.StatusBadRequest)
		return
	}

	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stop, err := h.service.UpdateStop(r.Context(), id, StopInput{
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, stop, http.StatusOK)
}

// NearestStops handles GET /bus-stops/nearest-bus-stop
func (h *Handler) NearestStops(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		h.respondError(w, "invalid lat", http.StatusBadRequest)
		return
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		h.respondError(w, "invalid lng", http.StatusBadRequest)
		return
	}

	stops, err := h.service.NearestStops(r.Context(), lat, lng)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, stops, http.StatusOK)
}

// ListStopLogs handles GET /bus-stops/{id}/logs and
// GET /bus-stops/{id}/{route_no}/logs
func (h *Handler) ListStopLogs(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.respondError(w, "invalid bus stop id", http.StatusBadRequest)
		return
	}

	var routeNo *string
	if raw := r.PathValue("route_no"); raw != "" {
		routeNo = &raw
	}

	var direction *int16
	if raw := r.URL.Query().Get("direction"); raw != "" {
		d, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			h.respondError(w, "invalid direction", http.StatusBadRequest)
			return
		}
		d16 := int16(d)
		direction = &d16
	}

	logs, err := h.service.GetStopLogs(r.Context(), id, routeNo, direction)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, logs, http.StatusOK)
}

// CreateStopLogRequest is the request body for logging a sighting.
type CreateStopLogRequest struct {
	Direction int16     `json:"direction"`
	LogDate   time.Time `json:"log_dt"`
}

// CreateStopLog handles POST /bus-stops/{id}/{route_no}/logs
func (h *Handler) CreateStopLog(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.respondError(w, "invalid bus stop id", http.StatusBadRequest)
		return
	}

	var req CreateStopLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	log, err := h.service.CreateStopLog(r.Context(), CreateStopLogInput{
		StopID:    id,
		RouteNo:   r.PathValue("route_no"),
		LogDate:   req.LogDate,
		Direction: req.Direction,
		UserID:    user.ID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, log, http.StatusCreated)
}

// GetStopLines handles GET /bus-stops/{id}/lines
func (h *Handler) GetStopLines(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.respondError(w, "invalid bus stop id", http.StatusBadRequest)
		return
	}

	lines, err := h.service.GetStopLines(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, lines, http.StatusOK)
}

// Helper methods

func (h *Handler) respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, errorResponse{Message: message}, status)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLineNotFound), errors.Is(err, ErrStopNotFound):
		h.respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrLineExists):
		h.respondError(w, err.Error(), http.StatusConflict)
	default:
		if isInputError(err.Error()) {
			h.respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("transit service error", "error", err)
		h.respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

func isInputError(msg string) bool {
	for _, prefix := range []string{"route_no", "title", "at least", "name", "latitude", "longitude", "log_dt"} {
		if len(msg) >= len(prefix) && msg[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
