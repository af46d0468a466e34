package model

import (
	"time"

	"github.com/google/uuid"
)

type FileCategory string

const (
	FileCategoryGeneral      FileCategory = "GENERAL"
	FileCategoryPaymentProof FileCategory = "PAYMENT_PROOF"
)

type File struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Path      string       `json:"path" db:"path"`
	OwnerID   uuid.UUID    `json:"owner_id" db:"owner_id"`
	IsPublic  bool         `json:"is_public" db:"is_public"`
	Category  FileCategory `json:"category" db:"category"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
