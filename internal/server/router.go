package server

import (
	"github.com/gin-gonic/gin"
)

// publicPaths are served without a credential. Everything else goes through
// the access guard.
func publicPaths() map[string]struct{} {
	return map[string]struct{}{
		"/userinfo/login":    {},
		"/userinfo/register": {},
		"/userinfo/info":     {},
		"/auth/login":        {},
		"/auth/register":     {},
		"/healthz":           {},
	}
}

// NewRouter assembles the gin engine: recovery, the access guard with its
// public-path set, and every route.
func NewRouter(h *Handler, sessions SessionValidator) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AccessGuard(sessions, publicPaths()))

	info := r.Group("/userinfo")
	{
		info.POST("/login", h.WechatLogin)
		info.POST("/register", h.WechatRegister)
		info.GET("/info", h.UserInfo)
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.PasswordLogin)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/profile", h.Profile)
	}

	r.GET("/healthz", h.Health)

	return r
}
