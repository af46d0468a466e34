package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User 使用者目錄資料，預約時以 email / phone 連結參加者
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Actor 已驗證的呼叫者
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess 檢查是否為資源擁有者或管理員
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	return a.IsAdmin() || a.ID == ownerID
}
