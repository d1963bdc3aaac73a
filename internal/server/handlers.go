package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/renqiu-dev/wxauth/internal/auth"
	"github.com/renqiu-dev/wxauth/internal/user"
)

// UserService is the slice of the user service the handlers need.
type UserService interface {
	WechatLogin(ctx context.Context, code string) (*auth.LoginToken, error)
	WechatRegister(ctx context.Context, code, nickName, avatarURL string) (*auth.LoginToken, error)
	PasswordLogin(ctx context.Context, username, password string) (*auth.LoginToken, error)
	Register(ctx context.Context, username, password, realName, email, phone string) (*auth.LoginToken, error)
	FindByID(ctx context.Context, id int64) (*user.User, error)
	FindByUsername(ctx context.Context, username string) (*user.User, error)
}

// SessionRevoker is the slice of the session service the logout handler needs.
type SessionRevoker interface {
	Revoke(ctx context.Context, tok string) error
}

// Handler carries the HTTP endpoints and their collaborators.
type Handler struct {
	users    UserService
	sessions SessionRevoker
	health   func(ctx context.Context) error
	logger   *slog.Logger
}

// NewHandler wires the endpoint handlers.
func NewHandler(users UserService, sessions SessionRevoker, health func(ctx context.Context) error, logger *slog.Logger) *Handler {
	return &Handler{users: users, sessions: sessions, health: health, logger: logger}
}

type wechatLoginRequest struct {
	Code string `json:"code" binding:"required"`
}

type wechatRegisterRequest struct {
	Code      string `json:"code" binding:"required"`
	NickName  string `json:"nickName"`
	AvatarURL string `json:"avatarUrl"`
}

type passwordLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6"`
	RealName string `json:"realName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// WechatLogin handles POST /userinfo/login.
func (h *Handler) WechatLogin(c *gin.Context) {
	var req wechatLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	issued, err := h.users.WechatLogin(c.Request.Context(), req.Code)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, issued)
}

// WechatRegister handles POST /userinfo/register.
func (h *Handler) WechatRegister(c *gin.Context) {
	var req wechatRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	issued, err := h.users.WechatRegister(c.Request.Context(), req.Code, req.NickName, req.AvatarURL)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, issued)
}

// UserInfo handles GET /userinfo/info, looking up by id or username.
func (h *Handler) UserInfo(c *gin.Context) {
	idParam := c.Query("id")
	username := c.Query("username")
	if idParam == "" && username == "" {
		respondError(c, http.StatusBadRequest, codeMissingParameter, "id or username is required")
		return
	}

	var (
		u   *user.User
		err error
	)
	if idParam != "" {
		id, parseErr := strconv.ParseInt(idParam, 10, 64)
		if parseErr != nil {
			respondError(c, http.StatusBadRequest, codeValidationError, "invalid user id")
			return
		}
		u, err = h.users.FindByID(c.Request.Context(), id)
	} else {
		u, err = h.users.FindByUsername(c.Request.Context(), username)
	}
	if err != nil {
		h.logger.Error("user lookup failed", "error", err)
		respondError(c, http.StatusInternalServerError, codeInternalError, "internal server error")
		return
	}
	if u == nil {
		respondError(c, http.StatusNotFound, codeDataNotFound, "user not found")
		return
	}
	respondOK(c, u)
}

// PasswordLogin handles POST /auth/login.
func (h *Handler) PasswordLogin(c *gin.Context) {
	var req passwordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	issued, err := h.users.PasswordLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, issued)
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeValidationError, "invalid request body")
		return
	}

	issued, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RealName, req.Email, req.Phone)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, issued)
}

// Logout handles POST /auth/logout, revoking the presented credential.
func (h *Handler) Logout(c *gin.Context) {
	tok, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		// The guard already required a credential; this is belt-and-braces.
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "missing credential")
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), tok); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "logged out"})
}

// Profile handles GET /auth/profile, echoing the request identity.
func (h *Handler) Profile(c *gin.Context) {
	payload, ok := Identity(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "missing credential")
		return
	}
	respondOK(c, gin.H{"userId": payload.Sub, "username": payload.Username})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if err := h.health(c.Request.Context()); err != nil {
		respondError(c, http.StatusServiceUnavailable, codeInternalError, "session store unavailable")
		return
	}
	respondOK(c, gin.H{"status": "ok"})
}
