package service

import (
	"context"
	"go-gin-trip-booking/internal/model"
	"go-gin-trip-booking/internal/repository"
	"go-gin-trip-booking/internal/storage"
	apperrors "go-gin-trip-booking/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FileUpload 上傳的原始檔案
type FileUpload struct {
	Filename string
	Data     []byte
}

type FileService interface {
	// Create 先寫入 blob，再於 tx 內新增 files 列
	Create(ctx context.Context, tx pgx.Tx, upload FileUpload, ownerID uuid.UUID, isPublic bool, category model.FileCategory) (*model.File, error)
	GetFile(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.File, error)
}

type FileServiceImpl struct {
	blobs      storage.BlobStore
	repository repository.FileRepository
	maxSize    int64
}

func NewFileService(blobs storage.BlobStore, fileRepository repository.FileRepository, maxSize int64) FileService {
	return &FileServiceImpl{
		blobs:      blobs,
		repository: fileRepository,
		maxSize:    maxSize,
	}
}

func (s *FileServiceImpl) Create(ctx context.Context, tx pgx.Tx, upload FileUpload, ownerID uuid.UUID, isPublic bool, category model.FileCategory) (*model.File, error) {
	if len(upload.Data) == 0 {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "file is empty")
	}
	if s.maxSize > 0 && int64(len(upload.Data)) > s.maxSize {
		return nil, apperrors.WithFields(apperrors.ErrInvalidInput,
			map[string]interface{}{"max_size": s.maxSize, "size": len(upload.Data)},
			"file exceeds %d bytes", s.maxSize)
	}

	visibility := "private"
	if isPublic {
		visibility = "public"
	}
	// 交易回滾時會留下孤兒檔案，不影響資料一致性
	path, err := s.blobs.Put(ctx, visibility, upload.Filename, upload.Data)
	if err != nil {
		return nil, err
	}

	return s.repository.Create(ctx, tx, &model.File{
		Path:     path,
		OwnerID:  ownerID,
		IsPublic: isPublic,
		Category: category,
	})
}

func (s *FileServiceImpl) GetFile(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.File, error) {
	file, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !file.IsPublic && !actor.CanAccess(file.OwnerID) {
		return nil, apperrors.ErrForbidden
	}
	return file, nil
}
