// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.level.String())
	}
}

func TestDefault_ReturnsUsableLogger(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger.Slog())
}

func TestNew_Quiet_NoFileNoOutput(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()
	// Should not panic and should have a usable slog.Logger even
	// with no destinations configured beyond the discard fallback.
	logger.Info("message that goes nowhere")
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelDebug, LogDir: dir, Service: "ash-test", Quiet: true})
	logger.Info("hello", "key", "value")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "ash-test_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "value", rec["key"])
	require.Equal(t, "ash-test", rec["service"])
}

func TestWith_ReturnsDistinctLogger(t *testing.T) {
	logger := Default()
	child := logger.With("job_id", 1)
	require.NotSame(t, logger, child)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	require.Equal(t, "/var/log/ash", expandPath("/var/log/ash"))
}

func TestClose_NoFile_NoError(t *testing.T) {
	logger := Default()
	require.NoError(t, logger.Close())
}
