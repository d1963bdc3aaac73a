package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/renqiu-dev/wxauth/internal/auth"
	"github.com/renqiu-dev/wxauth/internal/cache"
	"github.com/renqiu-dev/wxauth/internal/user"
	"github.com/renqiu-dev/wxauth/internal/wechat"
)

// Application error codes carried in the response envelope, independent of
// the HTTP status.
const (
	codeOK               = 0
	codeValidationError  = 1001
	codeMissingParameter = 1002
	codeUnauthorized     = 1003
	codeDataExists       = 2001
	codeDataNotFound     = 2002
	codeBusinessError    = 3001
	codeInternalError    = 9000
)

// Response is the uniform envelope for every endpoint: code 0 on success,
// an application error code otherwise, data null on failure.
type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: codeOK, Data: data, Message: "success"})
}

func respondError(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{Code: code, Data: nil, Message: message})
}

func abortError(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{Code: code, Data: nil, Message: message})
}

// mapping is one row of the error translation table.
type mapping struct {
	status  int
	code    int
	message string
}

// errorTable binds each failure kind to transport status and client-safe
// message. It is consulted once, at the response boundary; internal detail
// stays in the server-side logs.
var errorTable = []struct {
	target error
	m      mapping
}{
	{user.ErrNotRegistered, mapping{http.StatusUnauthorized, codeUnauthorized, "user not registered"}},
	{user.ErrAccountDisabled, mapping{http.StatusUnauthorized, codeUnauthorized, "account disabled"}},
	{user.ErrInvalidCredentials, mapping{http.StatusUnauthorized, codeUnauthorized, "invalid credentials"}},
	{user.ErrUserExists, mapping{http.StatusBadRequest, codeDataExists, "user already exists"}},
	// A rejected WeChat code is bad input, not an expired session.
	{wechat.ErrExchange, mapping{http.StatusBadRequest, codeBusinessError, "wechat login failed"}},
	{wechat.ErrNotConfigured, mapping{http.StatusBadRequest, codeBusinessError, "wechat login not configured"}},
	{wechat.ErrUnavailable, mapping{http.StatusBadRequest, codeBusinessError, "wechat api unavailable, try again later"}},
	{auth.ErrSessionCache, mapping{http.StatusInternalServerError, codeInternalError, "login temporarily unavailable"}},
	{auth.ErrUnauthorized, mapping{http.StatusUnauthorized, codeUnauthorized, "login state invalid or expired"}},
	{cache.ErrStoreUnavailable, mapping{http.StatusInternalServerError, codeInternalError, "service temporarily unavailable"}},
}

func respondServiceError(c *gin.Context, err error) {
	for _, row := range errorTable {
		if errors.Is(err, row.target) {
			respondError(c, row.m.status, row.m.code, row.m.message)
			return
		}
	}
	respondError(c, http.StatusInternalServerError, codeInternalError, "internal server error")
}
