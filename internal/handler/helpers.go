package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/chanlink/internal/middleware"
	"github.com/xxxsen/chanlink/internal/pkg/errcode"
	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
	"github.com/xxxsen/chanlink/internal/pkg/response"
)

type errorMapping struct {
	err    error
	status int
	code   int
}

var errorTable = []errorMapping{
	{appErr.ErrInvalid, http.StatusBadRequest, errcode.ErrInvalid},
	{appErr.ErrAccountNotFound, http.StatusNotFound, errcode.ErrAccountNotFound},
	{appErr.ErrAlreadyLinked, http.StatusConflict, errcode.ErrAlreadyLinked},
	{appErr.ErrChannelTaken, http.StatusConflict, errcode.ErrChannelTaken},
	{appErr.ErrChannelNotLinked, http.StatusConflict, errcode.ErrChannelNotLinked},
	{appErr.ErrInvalidCode, http.StatusBadRequest, errcode.ErrInvalidCode},
	{appErr.ErrDeliveryFailed, http.StatusBadGateway, errcode.ErrDeliveryFailed},
	{appErr.ErrTooMany, http.StatusTooManyRequests, errcode.ErrTooMany},
	{appErr.ErrUnauthorized, http.StatusUnauthorized, errcode.ErrUnauthorized},
	{appErr.ErrForbidden, http.StatusForbidden, errcode.ErrForbidden},
	{appErr.ErrNotFound, http.StatusNotFound, errcode.ErrNotFound},
	{appErr.ErrConflict, http.StatusConflict, errcode.ErrConflict},
}

// classify maps err to the status, numeric code and client message. Anything
// unknown is an internal error and its text is not exposed.
func classify(err error) (int, int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.err.Error()
		}
	}
	return http.StatusInternalServerError, errcode.ErrInternal, appErr.ErrInternal.Error()
}

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func badRequest(c *gin.Context) {
	response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, appErr.ErrInvalid.Error())
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, msg := classify(err)
	fields := []zap.Field{
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logutil.GetLogger(c.Request.Context()).Error("request failed", fields...)
	} else {
		logutil.GetLogger(c.Request.Context()).Debug("request rejected", fields...)
	}
	response.Error(c, status, code, msg)
}
