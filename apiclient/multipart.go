// Copyright 2025 The socialsync Authors
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

type filePart struct {
	field string
	path  string
}

// doMultipart uploads local files plus form fields in one request. A missing file
// fails before anything is sent.
func (c *Client) doMultipart(ctx context.Context, path, token string, fields map[string]string, files []filePart, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	for _, f := range files {
		if err := writeFilePart(w, f); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, token, w.FormDataContentType(), &buf, out)
}

func writeFilePart(w *multipart.Writer, f filePart) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	part, err := w.CreateFormFile(f.field, filepath.Base(f.path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy %s: %w", f.path, err)
	}
	return nil
}
