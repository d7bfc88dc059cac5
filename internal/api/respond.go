package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/teamchat/internal/apperr"
	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/service"
)

// statusFor maps an error code to the HTTP status clients see.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeNotAMember, apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidReference, apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeInvalidOperation, apperr.CodeAlreadyMember:
		return http.StatusConflict
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeInvalidOrExpiredInvite:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ..., "code": ...}. Internal causes were
// already logged by the service; only the generic message goes out.
func respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	_ = c.Error(err)
	c.JSON(statusFor(code), gin.H{"error": apperr.MessageOf(err), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, apperr.InvalidArg(msg))
}

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pageRequest reads ?cursor= and ?limit=. Out of range limits are clamped
// by the service; a non-numeric one is rejected here.
func pageRequest(c *gin.Context) (service.PageRequest, bool) {
	req := service.PageRequest{Cursor: c.Query("cursor")}
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			badRequest(c, "invalid 'limit' parameter")
			return req, false
		}
		req.Limit = n
	}
	return req, true
}

var principal = middleware.GetPrincipal
