package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus 預約狀態
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
	BookingStatusCompleted      BookingStatus = "COMPLETED"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingPayment: {BookingStatusConfirmed, BookingStatusCancelled},
	// 付款證明被退回時管理員可改回 PENDING_PAYMENT
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled, BookingStatusPendingPayment},
	BookingStatusCancelled: {},
	BookingStatusCompleted: {},
}

// IsValid 驗證狀態是否有效
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// IsTerminal 檢查是否為終止狀態
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// HoldsCapacity 檢查此狀態的預約是否佔用名額
func (s BookingStatus) HoldsCapacity() bool {
	return s != BookingStatusCancelled
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, status := range bookingTransitions[s] {
		if status == target {
			return true
		}
	}
	return false
}

type Booking struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	UserID         uuid.UUID     `json:"user_id" db:"user_id"`
	ServiceID      uuid.UUID     `json:"service_id" db:"service_id"`
	ScheduleID     uuid.UUID     `json:"schedule_id" db:"schedule_id"`
	Status         BookingStatus `json:"status" db:"status"`
	TotalPrice     int64         `json:"total_price" db:"total_price"`
	BalanceDue     int64         `json:"balance_due" db:"balance_due"`
	PaymentProofID *uuid.UUID    `json:"payment_proof_id,omitempty" db:"payment_proof_id"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`

	// 讀取時以 JOIN 填入
	AttendeeCount    int         `json:"attendee_count" db:"-"`
	PaymentProofPath *string     `json:"payment_proof_path,omitempty" db:"-"`
	ScheduleDate     *time.Time  `json:"schedule_date,omitempty" db:"-"`
	Attendees        []*Attendee `json:"attendees,omitempty" db:"-"`
}

// Attendee 參加者；UserID 僅在建立時依 email / phone 連結，之後編輯不會重新連結
type Attendee struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	BookingID uuid.UUID  `json:"booking_id" db:"booking_id"`
	Name      string     `json:"name" db:"name"`
	Email     *string    `json:"email,omitempty" db:"email"`
	Phone     *string    `json:"phone,omitempty" db:"phone"`
	UserID    *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
}

type AttendeeInput struct {
	Name  string  `json:"name" binding:"required"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Normalize 去除空白，空的聯絡方式設為 nil
func (a AttendeeInput) Normalize() AttendeeInput {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = TrimOrNil(a.Email)
	a.Phone = TrimOrNil(a.Phone)
	return a
}

// IsValid 需要姓名，且 email、phone 至少一項
func (a AttendeeInput) IsValid() bool {
	return IsValidContact(a.Name, a.Email, a.Phone)
}

// IsValidContact 檢查參加者必要欄位：姓名，以及有效的 email 或電話
func IsValidContact(name string, email, phone *string) bool {
	if name == "" || (email == nil && phone == nil) {
		return false
	}
	return email == nil || strings.Contains(*email, "@")
}

type AttendeeUpdate struct {
	ID    uuid.UUID `json:"id" binding:"required"`
	Name  *string   `json:"name"`
	Email *string   `json:"email"`
	Phone *string   `json:"phone"`
}

type CreateBookingRequest struct {
	ScheduleID uuid.UUID       `json:"schedule_id" binding:"required"`
	Attendees  []AttendeeInput `json:"attendees" binding:"required,min=1,dive"`
}

type UpdateAttendeesRequest struct {
	Add    []AttendeeInput  `json:"add" binding:"dive"`
	Update []AttendeeUpdate `json:"update" binding:"dive"`
	Remove []uuid.UUID      `json:"remove"`
}

func (r UpdateAttendeesRequest) IsEmpty() bool {
	return len(r.Add) == 0 && len(r.Update) == 0 && len(r.Remove) == 0
}

type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" binding:"required"`
}

type RescheduleBookingRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" binding:"required"`
}

// BookingFilter 列表查詢；UserID 為 nil 時列出全部（管理員）
type BookingFilter struct {
	UserID *uuid.UUID
	Limit  int
	Offset int
}

// TrimOrNil 去除空白，空字串回傳 nil
func TrimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
