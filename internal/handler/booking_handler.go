package handler

import (
	"go-gin-trip-booking/internal/middleware"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/service"
	"go-gin-trip-booking/pkg/response"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service        service.BookingService
	maxUploadBytes int64
}

func NewBookingHandler(service service.BookingService, maxUploadBytes int64) *BookingHandler {
	return &BookingHandler{service: service, maxUploadBytes: maxUploadBytes}
}

func (h *BookingHandler) RegisterRoutes(r *gin.Engine, authenticate gin.HandlerFunc) {
	router := r.Group("/api/v1", authenticate)
	{
		router.POST("bookings", h.CreateBooking)
		router.GET("bookings", h.GetBookings)
		router.GET("bookings/attended", h.GetAttendedBookings)
		router.GET("bookings/:id", h.GetBooking)
		router.PATCH("bookings/:id/cancel", h.CancelBooking)
		router.PATCH("bookings/:id/attendees", h.UpdateAttendees)
		router.PATCH("bookings/:id/schedule", h.RescheduleBooking)
		router.POST("bookings/:id/payment-proof", h.UploadPaymentProof)
		router.PATCH("bookings/:id/status", middleware.RequireRole(model.RoleAdmin), h.UpdateStatus)
	}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req model.CreateBookingRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	booking, err := h.service.CreateBooking(c.Request.Context(), req, actor)
	if err != nil {
		handleError(c, err, "CreateBooking")
		return
	}

	response.Created(c, booking)
}

func (h *BookingHandler) GetBookings(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var page model.PageQuery
	if err := BindQuery(c, &page); err != nil {
		return
	}

	bookings, total, err := h.service.ListBookings(c.Request.Context(), page, actor)
	if err != nil {
		handleError(c, err, "GetBookings")
		return
	}

	response.SuccessWithMeta(c, bookings, response.NewPageMeta(page.Page, page.Limit, total))
}

func (h *BookingHandler) GetAttendedBookings(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	bookings, err := h.service.ListAttended(c.Request.Context(), actor)
	if err != nil {
		handleError(c, err, "GetAttendedBookings")
		return
	}

	response.Success(c, bookings)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(c.Request.Context(), id, actor)
	if err != nil {
		handleError(c, err, "GetBooking")
		return
	}

	response.Success(c, booking)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	booking, err := h.service.CancelBooking(c.Request.Context(), id, actor)
	if err != nil {
		handleError(c, err, "CancelBooking")
		return
	}

	response.Success(c, booking)
}

func (h *BookingHandler) UpdateAttendees(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	var req model.UpdateAttendeesRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	booking, err := h.service.UpdateAttendees(c.Request.Context(), id, req, actor)
	if err != nil {
		handleError(c, err, "UpdateAttendees")
		return
	}

	response.Success(c, booking)
}

func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	var req model.UpdateBookingStatusRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	booking, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		handleError(c, err, "UpdateStatus")
		return
	}

	response.Success(c, booking)
}

func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	var req model.RescheduleBookingRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	booking, err := h.service.Reschedule(c.Request.Context(), id, req.ScheduleID, actor)
	if err != nil {
		handleError(c, err, "RescheduleBooking")
		return
	}

	response.Success(c, booking)
}

// UploadPaymentProof 接受 multipart 欄位 file
func (h *BookingHandler) UploadPaymentProof(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := BindID(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		// multipart 本身的開銷另外保留 1 KiB
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1024)
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		response.BadRequest(c, "file is too large")
		return
	}

	f, err := header.Open()
	if err != nil {
		handleError(c, err, "UploadPaymentProof")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		handleError(c, err, "UploadPaymentProof")
		return
	}

	booking, err := h.service.UploadPaymentProof(c.Request.Context(), id, service.FileUpload{
		Filename: header.Filename,
		Data:     data,
	}, actor)
	if err != nil {
		handleError(c, err, "UploadPaymentProof")
		return
	}

	response.Success(c, booking)
}
