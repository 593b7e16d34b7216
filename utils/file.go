// utils/file.go
package utils

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

const uploadRoot = "uploads"

// EnsureUploadDir creates the uploads directory if it doesn't exist
func EnsureUploadDir() error {
	return os.MkdirAll(uploadRoot, os.ModePerm)
}

// LocalStore is the ObjectStore used when no R2 bucket is configured. Files are served
// back by the /uploads static route.
type LocalStore struct {
	Root string
}

func NewLocalStore() *LocalStore {
	return &LocalStore{Root: uploadRoot}
}

func (l *LocalStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	destPath := filepath.Join(l.Root, filepath.FromSlash(key))
	if err := SaveFile(body, destPath); err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(destPath), nil
}

// SaveFile writes r to destPath, creating parent directories as needed.
func SaveFile(r io.Reader, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return err
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, r)
	return err
}
