package model

import (
	"time"

	"github.com/google/uuid"
)

type ServiceType string

const (
	ServiceTypeTrip     ServiceType = "TRIP"
	ServiceTypeRental   ServiceType = "RENTAL"
	ServiceTypeCatering ServiceType = "CATERING"
)

func (t ServiceType) IsValid() bool {
	switch t {
	case ServiceTypeTrip, ServiceTypeRental, ServiceTypeCatering:
		return true
	}
	return false
}

// Service 可預約的服務（行程、租借、餐飲）
type Service struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	BasePrice   int64        `json:"base_price" db:"base_price"`
	Location    *string      `json:"location,omitempty" db:"location"`
	ServiceType ServiceType  `json:"service_type" db:"service_type"`
	IsBookable  bool         `json:"is_bookable" db:"is_bookable"`
	TripDetails *TripDetails `json:"trip_details,omitempty" db:"-"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time   `json:"-" db:"deleted_at"`
}

func (s *Service) IsDeleted() bool {
	return s.DeletedAt != nil
}

type ItineraryActivity struct {
	Time        string `json:"time"`
	Description string `json:"description"`
}

type ItineraryDay struct {
	Day        int                 `json:"day"`
	Title      string              `json:"title"`
	Activities []ItineraryActivity `json:"activities"`
}

type TripDetails struct {
	DurationDays  int            `json:"duration_days" db:"duration_days"`
	MinAttendees  int            `json:"min_attendees" db:"min_attendees"`
	IsCancellable bool           `json:"is_cancellable" db:"is_cancellable"`
	Itinerary     []ItineraryDay `json:"itinerary" db:"itinerary"`
	Inclusions    []string       `json:"inclusions" db:"inclusions"`
	Exclusions    []string       `json:"exclusions" db:"exclusions"`
}

type CreateServiceRequest struct {
	Title       string       `json:"title" binding:"required"`
	Description string       `json:"description" binding:"required"`
	BasePrice   int64        `json:"base_price" binding:"min=0"`
	Location    *string      `json:"location"`
	ServiceType ServiceType  `json:"service_type" binding:"required"`
	IsBookable  *bool        `json:"is_bookable"`
	TripDetails *TripDetails `json:"trip_details"`
}

type UpdateServiceParams struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	BasePrice   *int64       `json:"base_price" binding:"omitempty,min=0"`
	Location    *string      `json:"location"`
	IsBookable  *bool        `json:"is_bookable"`
	TripDetails *TripDetails `json:"trip_details"`
}

func (p UpdateServiceParams) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.BasePrice == nil &&
		p.Location == nil && p.IsBookable == nil && p.TripDetails == nil
}

// MaxPage 頁碼上限，避免 OFFSET 溢位
const MaxPage = 100000

// PageQuery 分頁參數，page 從 1 開始
type PageQuery struct {
	Page  int `form:"page,default=1" binding:"min=1,max=100000"`
	Limit int `form:"limit,default=10" binding:"min=1,max=100"`
}

// Offset 未經 binding 的值也會被夾在 [1, MaxPage] 內
func (q PageQuery) Offset() int {
	page := min(max(q.Page, 1), MaxPage)
	return (page - 1) * max(q.Limit, 0)
}
