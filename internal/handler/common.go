package handler

import (
	"errors"
	"go-gin-trip-booking/internal/middleware"
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"go-gin-trip-booking/pkg/logger"
	"go-gin-trip-booking/pkg/response"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.BadRequest(c, "Invalid request format")
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return err
	}
	return nil
}

type idUri struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// BindID 解析路徑中的 :id
func BindID(c *gin.Context) (uuid.UUID, bool) {
	var uri idUri
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "Invalid id")
		return uuid.Nil, false
	}
	return uuid.MustParse(uri.ID), true
}

// currentActor 讀取 Auth middleware 放入的使用者
func currentActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
	}
	return actor, ok
}

// statusFor 將領域錯誤對應到 HTTP 狀態碼；非預期錯誤時 ok 為 false
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, true
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, true
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, true
	case errors.Is(err, apperrors.ErrCapacityExceeded),
		errors.Is(err, apperrors.ErrCapacityViolation),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrResourceInUse),
		errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, true
	case errors.Is(err, apperrors.ErrNotBookable),
		errors.Is(err, apperrors.ErrOutsideModificationWindow),
		errors.Is(err, apperrors.ErrMinimumAttendeeViolation):
		return http.StatusUnprocessableEntity, true
	}
	return http.StatusInternalServerError, false
}

func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	status, ok := statusFor(err)
	if !ok {
		log.Error("Unexpected error")
		response.Error(c, http.StatusInternalServerError, apperrors.CodeInternal, "Internal server error", nil)
		return
	}

	code := apperrors.Code(err)
	log.Warn("Request rejected", zap.String("code", code))

	message := apperrors.Detail(err)
	if message == "" {
		message = err.Error()
	}
	response.Error(c, status, code, message, apperrors.Fields(err))
}
