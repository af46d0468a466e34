package handler

import (
	"go-gin-trip-booking/internal/service"
	"go-gin-trip-booking/pkg/response"

	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	service service.FileService
}

func NewFileHandler(service service.FileService) *FileHandler {
	return &FileHandler{service: service}
}

func (h *FileHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	router := r.Group("/api/v1", authenticate)
	{
		router.GET("files/:id", h.GetFile)
	}
}

func (h *FileHandler) GetFile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	file, err := h.service.GetFile(c.Request.Context(), id, actor)
	if err != nil {
		handleError(c, err, "GetFile")
		return
	}

	response.Success(c, file)
}
