package vehicle

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	commonserver "github.com/FleetAssign/FleetAssign/internal/common/server"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler 车辆注册表的 HTTP 入口。
type Handler struct {
	repo *Repo
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{repo: NewRepo(db)}
}

// RegisterRoutes 挂载车辆相关路由。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/vehicles", h.handleCollection)
	mux.HandleFunc("/api/vehicles/", h.handleByID)
}

type upsertVehicleRequest struct {
	ID          string `json:"id"`
	PlateNumber string `json:"plate_number"`
	VIN         string `json:"vin"`
	Model       string `json:"model"`
	OwnerKind   string `json:"owner_kind"`
	OwnerID     string `json:"owner_id"`
	Status      string `json:"status"`
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upsert(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	plate := strings.TrimSpace(req.PlateNumber)
	if plate == "" {
		commonserver.WriteError(w, http.StatusBadRequest, "plate_number_required", nil)
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	st := strings.TrimSpace(req.Status)
	if st == "" {
		st = StatusAvailable
	}
	kind := strings.TrimSpace(req.OwnerKind)
	if kind == "" {
		kind = OwnerKindCompany
	}

	v := &Vehicle{
		ID:          id,
		PlateNumber: plate,
		VIN:         strings.TrimSpace(req.VIN),
		Model:       strings.TrimSpace(req.Model),
		OwnerKind:   kind,
		OwnerID:     strings.TrimSpace(req.OwnerID),
		Status:      st,
	}
	if err := h.repo.Upsert(r.Context(), v); err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	// 回读拿到数据库写入的时间戳
	latest, err := h.repo.FindByID(r.Context(), v.ID)
	if err != nil {
		latest = v
	}
	commonserver.WriteJSON(w, http.StatusOK, latest)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 1
	size := 20
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 && v <= 200 {
		size = v
	}
	offset := (page - 1) * size

	vs, total, err := h.repo.List(r.Context(), strings.TrimSpace(q.Get("owner_id")), strings.TrimSpace(q.Get("status")), offset, size)
	if err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, map[string]any{
		"vehicles": vs,
		"total":    total,
	})
}

func (h *Handler) handleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/vehicles/"))
	if id == "" || strings.Contains(id, "/") {
		commonserver.WriteError(w, http.StatusBadRequest, "id_required", nil)
		return
	}
	v, err := h.repo.FindByID(r.Context(), id)
	if err == gorm.ErrRecordNotFound {
		commonserver.WriteError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	commonserver.WriteJSON(w, http.StatusOK, v)
}
