package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout 日期的傳輸格式
const DateLayout = "2006-01-02"

// Schedule 某服務在某一天的名額池
//
// 0 <= BookedCount <= Capacity 由鎖定交易維護，資料庫另有 CHECK 約束
type Schedule struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ServiceID   uuid.UUID  `json:"service_id" db:"service_id"`
	Date        time.Time  `json:"date" db:"date"`
	Capacity    int        `json:"capacity" db:"capacity"`
	BookedCount int        `json:"booked_count" db:"booked_count"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"-" db:"deleted_at"`
}

// IsDeleted 只剩已取消預約參照的日期以軟刪除保留
func (s *Schedule) IsDeleted() bool {
	return s.DeletedAt != nil
}

func (s *Schedule) Remaining() int {
	return s.Capacity - s.BookedCount
}

func (s *Schedule) CanAccommodate(n int) bool {
	return s.BookedCount+n <= s.Capacity
}

func (s *Schedule) Availability() ScheduleAvailability {
	return ScheduleAvailability{
		ScheduleID:  s.ID,
		Capacity:    s.Capacity,
		BookedCount: s.BookedCount,
		Remaining:   s.Remaining(),
		IsActive:    s.IsActive,
	}
}

type ScheduleAvailability struct {
	ScheduleID  uuid.UUID `json:"schedule_id"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"booked_count"`
	Remaining   int       `json:"remaining"`
	IsActive    bool      `json:"is_active"`
}

type CreateScheduleRequest struct {
	ServiceID uuid.UUID `json:"service_id" binding:"required"`
	Date      string    `json:"date" binding:"required"`
	Capacity  int       `json:"capacity" binding:"required,min=1"`
	IsActive  *bool     `json:"is_active"`
}

type UpdateScheduleParams struct {
	Date     *string `json:"date"`
	Capacity *int    `json:"capacity" binding:"omitempty,min=1"`
	IsActive *bool   `json:"is_active"`
}

// ParseDate 將 YYYY-MM-DD 解析為 UTC 零點
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// ManifestEntry 名單 PDF 的一列
type ManifestEntry struct {
	BookingID     uuid.UUID     `json:"booking_id"`
	BookingStatus BookingStatus `json:"booking_status"`
	Name          string        `json:"name"`
	Email         *string       `json:"email,omitempty"`
	Phone         *string       `json:"phone,omitempty"`
}
