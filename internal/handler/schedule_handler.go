package handler

import (
	"fmt"
	"go-gin-trip-booking/internal/middleware"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/service"
	"go-gin-trip-booking/pkg/response"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	service service.ScheduleService
}

func NewScheduleHandler(service service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

func (h *ScheduleHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.GET("services/:id/schedules", h.GetServiceSchedules)
		public.GET("schedules/:id", h.GetSchedule)
		public.GET("schedules/:id/availability", h.GetAvailability)
	}

	admin := r.Group("/api/v1", authenticate, middleware.RequireRole(model.RoleAdmin))
	{
		admin.POST("schedules", h.CreateSchedule)
		admin.PATCH("schedules/:id", h.UpdateSchedule)
		admin.DELETE("schedules/:id", h.DeleteSchedule)
		admin.GET("schedules/:id/manifest", h.GetManifest)
	}
}

func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req model.CreateScheduleRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	created, err := h.service.CreateSchedule(c.Request.Context(), req, actor)
	if err != nil {
		handleError(c, err, "CreateSchedule")
		return
	}

	response.Created(c, created)
}

func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	var params model.UpdateScheduleParams
	if err := BindJson(c, &params); err != nil {
		return
	}

	updated, err := h.service.UpdateSchedule(c.Request.Context(), id, params, actor)
	if err != nil {
		handleError(c, err, "UpdateSchedule")
		return
	}

	response.Success(c, updated)
}

func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteSchedule(c.Request.Context(), id, actor); err != nil {
		handleError(c, err, "DeleteSchedule")
		return
	}

	response.NoContent(c)
}

func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	id, ok := BindID(c)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetSchedule")
		return
	}

	response.Success(c, schedule)
}

func (h *ScheduleHandler) GetServiceSchedules(c *gin.Context) {
	serviceID, ok := BindID(c)
	if !ok {
		return
	}

	schedules, err := h.service.ListUpcoming(c.Request.Context(), serviceID)
	if err != nil {
		handleError(c, err, "GetServiceSchedules")
		return
	}

	response.Success(c, schedules)
}

func (h *ScheduleHandler) GetAvailability(c *gin.Context) {
	id, ok := BindID(c)
	if !ok {
		return
	}

	availability, err := h.service.GetAvailability(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetAvailability")
		return
	}

	response.Success(c, availability)
}

// GetManifest 回傳 PDF 出團名單
func (h *ScheduleHandler) GetManifest(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	pdf, err := h.service.Manifest(c.Request.Context(), id, actor)
	if err != nil {
		handleError(c, err, "GetManifest")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="manifest-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
