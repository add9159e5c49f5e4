package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const licenseHeader = "// Copyright 2025 The socialsync Authors\n// SPDX-License-Identifier: Apache-2.0\n"

func TestSourceFilesCarryProjectLicenseHeader(t *testing.T) {
	var checked int
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || d.Name() == "testdata" || (d.Name() != "." && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		require.Truef(t, strings.HasPrefix(string(data), licenseHeader), "%s: missing project license header", path)
		checked++
		return nil
	})
	require.NoError(t, err)
	require.NotZero(t, checked)
}
