package user

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/FleetAssign/FleetAssign/internal/common/auth"
	"github.com/FleetAssign/FleetAssign/internal/common/config"
	"github.com/FleetAssign/FleetAssign/internal/common/middleware"
	commonserver "github.com/FleetAssign/FleetAssign/internal/common/server"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler 用户注册/登录的 HTTP 入口（登录签发 JWT，供调度接口鉴权使用）。
type Handler struct {
	repo    *Repo
	authCfg config.AuthConfig
	// 登录走滑动窗口限流，挡撞库
	loginLimiter middleware.RateLimiter
}

func NewHandler(db *gorm.DB, authCfg config.AuthConfig) *Handler {
	return &Handler{
		repo:         NewRepo(db),
		authCfg:      authCfg,
		loginLimiter: middleware.NewSlidingWindow(time.Minute, 30),
	}
}

// RegisterRoutes 挂载用户相关路由。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/users/register", h.register)
	mux.HandleFunc("/api/users/login", h.login)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		commonserver.WriteError(w, http.StatusBadRequest, "username_password_required", nil)
		return
	}

	// check existence
	if _, err := h.repo.FindByUsername(r.Context(), username); err == nil {
		commonserver.WriteError(w, http.StatusConflict, "username_exists", nil)
		return
	} else if err != nil && err != gorm.ErrRecordNotFound {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	hash, err := HashPassword(req.Password, salt)
	if err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		Nickname:     strings.TrimSpace(req.Nickname),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        strings.TrimSpace(req.Email),
		Roles:        "user",
	}
	if err := h.repo.Create(r.Context(), u); err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	commonserver.WriteJSON(w, http.StatusOK, map[string]any{
		"id":       u.ID,
		"username": u.Username,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		commonserver.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if h.loginLimiter != nil && !h.loginLimiter.Allow(r.Context()) {
		commonserver.WriteError(w, http.StatusTooManyRequests, "too_many_login_attempts", nil)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		commonserver.WriteError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		commonserver.WriteError(w, http.StatusBadRequest, "username_password_required", nil)
		return
	}

	u, err := h.repo.FindByUsername(r.Context(), username)
	if err == gorm.ErrRecordNotFound {
		commonserver.WriteError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if !VerifyPassword(req.Password, u.PasswordSalt, u.PasswordHash) {
		commonserver.WriteError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	token, expiresAt, err := auth.GenerateAccessToken(h.authCfg, u.ID, u.RolesSlice(), 24*time.Hour)
	if err != nil {
		commonserver.WriteError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	commonserver.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expires_at":   expiresAt.Unix(),
		"user_id":      u.ID,
	})
}
