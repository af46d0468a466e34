package handler

import (
	"go-gin-trip-booking/internal/middleware"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/service"
	"go-gin-trip-booking/pkg/response"

	"github.com/gin-gonic/gin"
)

type ServiceHandler struct {
	service service.CatalogService
}

func NewServiceHandler(service service.CatalogService) *ServiceHandler {
	return &ServiceHandler{service: service}
}

func (h *ServiceHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.GET("services", h.GetServices)
		public.GET("services/:id", h.GetService)
	}

	admin := r.Group("/api/v1", authenticate, middleware.RequireRole(model.RoleAdmin))
	{
		admin.POST("services", h.CreateService)
		admin.PATCH("services/:id", h.UpdateService)
		admin.DELETE("services/:id", h.DeleteService)
	}
}

func (h *ServiceHandler) CreateService(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req model.CreateServiceRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	created, err := h.service.CreateService(c.Request.Context(), req, actor)
	if err != nil {
		handleError(c, err, "CreateService")
		return
	}

	response.Created(c, created)
}

func (h *ServiceHandler) GetServices(c *gin.Context) {
	var page model.PageQuery
	if err := BindQuery(c, &page); err != nil {
		return
	}

	services, total, err := h.service.ListServices(c.Request.Context(), page)
	if err != nil {
		handleError(c, err, "GetServices")
		return
	}

	response.SuccessWithMeta(c, services, response.NewPageMeta(page.Page, page.Limit, total))
}

func (h *ServiceHandler) GetService(c *gin.Context) {
	id, ok := BindID(c)
	if !ok {
		return
	}

	svc, err := h.service.GetService(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetService")
		return
	}

	response.Success(c, svc)
}

func (h *ServiceHandler) UpdateService(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	var params model.UpdateServiceParams
	if err := BindJson(c, &params); err != nil {
		return
	}

	updated, err := h.service.UpdateService(c.Request.Context(), id, params, actor)
	if err != nil {
		handleError(c, err, "UpdateService")
		return
	}

	response.Success(c, updated)
}

// DeleteService 軟刪除
func (h *ServiceHandler) DeleteService(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteService(c.Request.Context(), id, actor); err != nil {
		handleError(c, err, "DeleteService")
		return
	}

	response.NoContent(c)
}
