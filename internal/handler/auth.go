package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/memberclub/internal/middleware"
	"github.com/mmeshcher/memberclub/internal/service"
)

type registerRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Prefix   string `json:"prefix"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) startSession(w http.ResponseWriter, subject string, role middleware.Role) bool {
	if err := h.authMiddleware.SetSessionCookie(w, subject, role); err != nil {
		h.logger.Error("set session cookie error", zap.Error(err))
		writeErrorKind(w, http.StatusInternalServerError, kindInternal, http.StatusText(http.StatusInternalServerError))
		return false
	}
	return true
}

// Register регистрирует участника и открывает для него сессию.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, err := h.service.RegisterMember(r.Context(), service.Registration{
		Phone:    req.Phone,
		Password: req.Password,
		Prefix:   req.Prefix,
		Name:     req.Name,
	})
	if err != nil {
		h.writeError(w, "register member", err)
		return
	}

	if !h.startSession(w, m.ID, middleware.RoleMember) {
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Login выполняет аутентификацию участника по телефону и паролю и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Phone == "" || req.Password == "" {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, "phone and password are required")
		return
	}

	m, err := h.service.AuthenticateMember(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.writeError(w, "login member", err)
		return
	}

	if !h.startSession(w, m.ID, middleware.RoleMember) {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Logout завершает сессию участника.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearSessionCookie(w, middleware.RoleMember)
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает текущего участника.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	m, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		h.writeError(w, "get current member", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// AdminLogin выполняет аутентификацию администратора.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, "username and password are required")
		return
	}

	a, err := h.service.AuthenticateAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, "login admin", err)
		return
	}

	if !h.startSession(w, a.ID, middleware.RoleAdmin) {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// AdminLogout завершает сессию администратора.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearSessionCookie(w, middleware.RoleAdmin)
	w.WriteHeader(http.StatusNoContent)
}

// AdminMe возвращает текущего администратора.
func (h *Handler) AdminMe(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.adminID(w, r)
	if !ok {
		return
	}

	a, err := h.service.GetAdmin(r.Context(), adminID)
	if err != nil {
		h.writeError(w, "get current admin", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
