// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/daniyalkhawar366/socialsync/api"
	"github.com/google/uuid"
)

// MediaStore keeps uploaded files on local disk and serves them under /media/.
type MediaStore struct {
	dir     string
	baseURL string
}

// NewMediaStore stores files in dir. URLs are prefixed with baseURL, which may be
// empty for host-relative URLs.
func NewMediaStore(dir, baseURL string) (*MediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &MediaStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save copies an uploaded file under a fresh name and returns its public URL.
func (m *MediaStore) Save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	name := uuid.New().String() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(m.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create media file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return m.baseURL + api.PathMedia + name, nil
}

// Delete removes the file behind url. Unknown URLs and missing files are ignored.
func (m *MediaStore) Delete(url string) error {
	i := strings.LastIndex(url, api.PathMedia)
	if i < 0 {
		return nil
	}
	name := filepath.Base(url[i+len(api.PathMedia):])
	if name == "." || name == "/" {
		return nil
	}
	if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Dir is the directory files are stored in.
func (m *MediaStore) Dir() string { return m.dir }
