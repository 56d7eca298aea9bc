package assignment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	commonserver "github.com/FleetAssign/FleetAssign/internal/common/server"
)

// Handler 调度接口的 HTTP 入口。
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 挂载调度路由。精确路径优先于前缀路由匹配。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/assignments", h.create)
	mux.HandleFunc("/api/assignments/propose", h.propose)
	mux.HandleFunc("/api/assignments/active", h.queryActive)
	mux.HandleFunc("/api/assignments/upcoming", h.queryUpcoming)
	mux.HandleFunc("/api/assignments/occupied", h.queryOccupied)
	mux.HandleFunc("/api/assignments/history", h.history)
	mux.HandleFunc("/api/assignments/", h.byID)
}

type createRequest struct {
	VehicleID     string `json:"vehicle_id"`
	UserID        string `json:"user_id"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	Reason        string `json:"reason"`
	StartOdometer *int64 `json:"start_odometer"`
	Note          string `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	start, ok := parseTime(w, req.StartAt, "start_at")
	if !ok {
		return
	}
	var end *time.Time
	if strings.TrimSpace(req.EndAt) != "" {
		t, ok := parseTime(w, req.EndAt, "end_at")
		if !ok {
			return
		}
		end = &t
	}

	createdBy := ""
	if ai, ok := commonserver.AuthFromContext(r.Context()); ok {
		createdBy = ai.Subject
	}

	a, err := h.svc.CreateAssignment(r.Context(), CreateAssignmentInput{
		VehicleID:     req.VehicleID,
		UserID:        req.UserID,
		StartAt:       start,
		EndAt:         end,
		Reason:        req.Reason,
		StartOdometer: req.StartOdometer,
		Note:          req.Note,
		CreatedBy:     createdBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	commonserver.WriteJSON(w, http.StatusCreated, a)
}

type proposeRequest struct {
	VehicleID string `json:"vehicle_id"`
	StartAt   string `json:"start_at"`
	EndAt     string `json:"end_at"`
	ExcludeID string `json:"exclude_id"`
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	start, ok := parseTime(w, req.StartAt, "start_at")
	if !ok {
		return
	}
	iv := NewOpenInterval(start)
	if strings.TrimSpace(req.EndAt) != "" {
		t, ok := parseTime(w, req.EndAt, "end_at")
		if !ok {
			return
		}
		iv = NewInterval(start, t)
	}

	d, err := h.svc.ProposeInterval(r.Context(), req.VehicleID, iv, req.ExcludeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := map[string]any{"accepted": d.Accepted}
	if d.Conflicting != nil {
		resp["conflicting_id"] = d.Conflicting.ID
		resp["conflicting_start"] = d.Conflicting.StartAt
		if d.Conflicting.EndAt != nil {
			resp["conflicting_end"] = d.Conflicting.EndAt
		}
	}
	commonserver.WriteJSON(w, http.StatusOK, resp)
}

// byID 处理 /api/assignments/{id} 及其子操作 close、cancel。
func (h *Handler) byID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/assignments/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		commonserver.WriteError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		h.get(w, r, id)
	case len(parts) == 2 && parts[1] == "close":
		h.close(w, r, id)
	case len(parts) == 2 && parts[1] == "cancel":
		h.cancel(w, r, id)
	default:
		commonserver.WriteError(w, http.StatusNotFound, "not_found", nil)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	a, err := h.svc.GetAssignment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, a)
}

type closeRequest struct {
	EndAt       string `json:"end_at"`
	EndOdometer *int64 `json:"end_odometer"`
	Note        string `json:"note"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	end, ok := parseTime(w, req.EndAt, "end_at")
	if !ok {
		return
	}

	a, err := h.svc.CloseAssignment(r.Context(), id, CloseAssignmentInput{
		EndAt:       end,
		EndOdometer: req.EndOdometer,
		Note:        req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if err := h.svc.CancelAssignment(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "cancelled": true})
}

func (h *Handler) queryActive(w http.ResponseWriter, r *http.Request) {
	vehicleID, asOf, ok := queryParams(w, r)
	if !ok {
		return
	}
	a, err := h.svc.QueryActive(r.Context(), vehicleID, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if a == nil {
		commonserver.WriteJSON(w, http.StatusOK, map[string]any{"active": nil})
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, map[string]any{"active": a})
}

func (h *Handler) queryUpcoming(w http.ResponseWriter, r *http.Request) {
	vehicleID, asOf, ok := queryParams(w, r)
	if !ok {
		return
	}
	a, err := h.svc.QueryUpcoming(r.Context(), vehicleID, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if a == nil {
		commonserver.WriteJSON(w, http.StatusOK, map[string]any{"upcoming": nil})
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, map[string]any{"upcoming": a})
}

func (h *Handler) queryOccupied(w http.ResponseWriter, r *http.Request) {
	vehicleID, asOf, ok := queryParams(w, r)
	if !ok {
		return
	}
	periods, err := h.svc.QueryOccupied(r.Context(), vehicleID, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, map[string]any{
		"vehicle_id": vehicleID,
		"occupied":   periods,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	vehicleID := strings.TrimSpace(r.URL.Query().Get("vehicle_id"))
	if vehicleID == "" {
		commonserver.WriteError(w, http.StatusBadRequest, "vehicle_id_required", nil)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, total, err := h.svc.ListHistory(r.Context(), vehicleID, offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"items": items,
	})
}

func queryParams(w http.ResponseWriter, r *http.Request) (vehicleID string, asOf time.Time, ok bool) {
	if r.Method != http.MethodGet {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return "", time.Time{}, false
	}
	vehicleID = strings.TrimSpace(r.URL.Query().Get("vehicle_id"))
	if vehicleID == "" {
		commonserver.WriteError(w, http.StatusBadRequest, "vehicle_id_required", nil)
		return "", time.Time{}, false
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			commonserver.WriteError(w, http.StatusBadRequest, "invalid_as_of", nil)
			return "", time.Time{}, false
		}
		asOf = t
	}
	return vehicleID, asOf, true
}

func parseTime(w http.ResponseWriter, raw, field string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_"+field, nil)
		return time.Time{}, false
	}
	return t, true
}

// writeDomainError 把领域错误映射为 HTTP 状态码。
func writeDomainError(w http.ResponseWriter, err error) {
	var ce *ConflictError
	switch {
	case errors.As(err, &ce):
		commonserver.WriteError(w, http.StatusConflict, "conflict", map[string]any{
			"conflicting_id": ce.ConflictingID,
		})
	case errors.Is(err, ErrNotFound):
		commonserver.WriteError(w, http.StatusNotFound, "assignment_not_found", nil)
	case errors.Is(err, ErrVehicleNotFound):
		commonserver.WriteError(w, http.StatusNotFound, "vehicle_not_found", nil)
	case errors.Is(err, ErrNotOpen):
		commonserver.WriteError(w, http.StatusConflict, "assignment_not_open", nil)
	case errors.Is(err, ErrInvalidInterval):
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_interval", nil)
	case errors.Is(err, ErrInvalidOdometer):
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_odometer", nil)
	default:
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
