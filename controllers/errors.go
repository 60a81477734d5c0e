package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rodeway/board/services"
	"github.com/rodeway/board/storage"
	"github.com/rodeway/board/utils"
)

type errorMapping struct {
	err    error
	status int
	code   int
}

// errorTable maps service errors to HTTP statuses and numeric API codes. Order matters:
// more specific errors come before the ones they may wrap.
var errorTable = []errorMapping{
	{services.ErrInvalidInput, http.StatusBadRequest, 40000},
	{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, 41300},
	{utils.ErrImageTooLarge, http.StatusRequestEntityTooLarge, 41301},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, 40106},
	{services.ErrAccountBanned, http.StatusForbidden, 40302},
	{services.ErrAccessDenied, http.StatusForbidden, 40300},
	{services.ErrAccountNotFound, http.StatusNotFound, 40410},
	{services.ErrPostNotFound, http.StatusNotFound, 40420},
	{services.ErrCommentNotFound, http.StatusNotFound, 40430},
	{services.ErrParentCommentNotFound, http.StatusNotFound, 40431},
	{services.ErrNotificationNotFound, http.StatusNotFound, 40440},
	{storage.ErrBlobNotFound, http.StatusNotFound, 40450},
	{storage.ErrInvalidHandle, http.StatusBadRequest, 40050},
	{services.ErrDuplicateUsername, http.StatusConflict, 40900},
	{services.ErrStorageUnavailable, http.StatusServiceUnavailable, 50300},
}

// respondError writes the error envelope for err. Unknown errors are logged and hidden.
func respondError(ctx *gin.Context, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				utils.Logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
				utils.Error(ctx, m.status, m.code, m.err.Error())
				return
			}
			utils.Error(ctx, m.status, m.code, err.Error())
			return
		}
	}
	utils.Logger.Error("unexpected error", zap.String("path", ctx.FullPath()), zap.Error(err))
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
}

// parseID reads a positive numeric path parameter.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// parsePagination reads page and page_size. Invalid or missing values fall back to the service defaults.
func parsePagination(pageStr, sizeStr string) (int, int) {
	page, pageSize := 1, 0
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 {
		pageSize = s
	}
	return page, pageSize
}
