package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore 保存上傳的檔案內容，回傳寫入 files 表的路徑
type BlobStore interface {
	Put(ctx context.Context, prefix, filename string, data []byte) (string, error)
}

type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalBlobStore{root: root}, nil
}

// Put 以隨機檔名寫入，只保留原檔的副檔名
func (s *LocalBlobStore) Put(ctx context.Context, prefix, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, filepath.Clean("/" + prefix))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
