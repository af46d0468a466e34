package handler

import (
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupServiceTestRouter(mockService *CatalogServiceMock, actor model.Actor) *gin.Engine {
	router := gin.New()
	NewServiceHandler(mockService).RegisterRoutes(router, fakeAuth(actor))
	return router
}

func TestCreateService(t *testing.T) {
	req := model.CreateServiceRequest{
		Title:       "Ijen blue fire",
		Description: "Night hike",
		BasePrice:   500000,
		ServiceType: model.ServiceTypeTrip,
		TripDetails: &model.TripDetails{DurationDays: 1, MinAttendees: 1},
	}

	t.Run("Success", func(t *testing.T) {
		mockService := &CatalogServiceMock{}
		router := setupServiceTestRouter(mockService, testAdmin)
		mockService.On("CreateService", mock.Anything, mock.AnythingOfType("model.CreateServiceRequest"), testAdmin).
			Return(&model.Service{ID: uuid.New(), Title: req.Title}, nil).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/services", req))

		assert.Equal(t, http.StatusCreated, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - InvalidInput", func(t *testing.T) {
		mockService := &CatalogServiceMock{}
		router := setupServiceTestRouter(mockService, testAdmin)
		mockService.On("CreateService", mock.Anything, mock.Anything, testAdmin).
			Return(nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "itinerary day 3 is outside a 1 day trip")).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/services", req))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "itinerary day 3 is outside a 1 day trip", decode(t, w).Error.Message)
	})

	t.Run("Failed - NotAdmin", func(t *testing.T) {
		mockService := &CatalogServiceMock{}
		router := setupServiceTestRouter(mockService, testUser)

		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/services", req))

		assert.Equal(t, http.StatusForbidden, w.Code)
		mockService.AssertNotCalled(t, "CreateService")
	})
}

func TestGetServices(t *testing.T) {
	mockService := &CatalogServiceMock{}
	router := setupServiceTestRouter(mockService, testUser)
	mockService.On("ListServices", mock.Anything, model.PageQuery{Page: 1, Limit: 10}).
		Return([]*model.Service{{ID: uuid.New()}}, 1, nil).Once()

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestGetService_NotFound(t *testing.T) {
	id := uuid.New()
	mockService := &CatalogServiceMock{}
	router := setupServiceTestRouter(mockService, testUser)
	mockService.On("GetService", mock.Anything, id).Return(nil, apperrors.ErrServiceNotFound).Once()

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/services/"+id.String(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}

func TestUpdateAndDeleteService(t *testing.T) {
	id := uuid.New()
	mockService := &CatalogServiceMock{}
	router := setupServiceTestRouter(mockService, testAdmin)
	mockService.On("UpdateService", mock.Anything, id, mock.Anything, testAdmin).
		Return(&model.Service{ID: id, IsBookable: false}, nil).Once()
	mockService.On("DeleteService", mock.Anything, id, testAdmin).Return(nil).Once()

	w := serve(router, createJSONHTTPRequest(http.MethodPatch, "/api/v1/services/"+id.String(), map[string]bool{"is_bookable": false}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodDelete, "/api/v1/services/"+id.String(), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	mockService.AssertExpectations(t)
}

func TestGetFile(t *testing.T) {
	id := uuid.New()
	mockService := &FileServiceMock{}
	router := gin.New()
	NewFileHandler(mockService).RegisterRoutes(router, fakeAuth(testUser))

	mockService.On("GetFile", mock.Anything, id, testUser).Return(nil, apperrors.ErrForbidden).Once()

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/files/"+id.String(), nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertExpectations(t)
}
