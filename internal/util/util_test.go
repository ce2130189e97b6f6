// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceFile_CreatesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")

	require.NoError(t, ReplaceFile(path, []byte("first"), SharedPerms))
	require.NoError(t, ReplaceFile(path, []byte("second"), PrivatePerms))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staged copy must not be left behind")
}

func TestReplaceFile_FailedRenameRemovesStagedCopy(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "busy")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

	err := ReplaceFile(target, []byte("data"), SharedPerms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace")

	_, statErr := os.Stat(target + ".partial")
	assert.True(t, os.IsNotExist(statErr))
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 0, ""},
		{"hello", 2, "he"},
		{"日本語テキスト", 7, "日本..."},
	}
	for _, tt := range tests {
		got := TruncateWidth(tt.in, tt.width)
		assert.Equal(t, tt.want, got, "TruncateWidth(%q, %d)", tt.in, tt.width)
		assert.LessOrEqual(t, StringWidth(got), max(tt.width, 0))
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on ", "y"} {
		assert.True(t, ParseBool(s), s)
	}
	for _, s := range []string{"0", "false", "off", "", "maybe"} {
		assert.False(t, ParseBool(s), s)
	}
}

func TestParseTemperature(t *testing.T) {
	v, err := ParseTemperature("0.3")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, v, 1e-9)

	v, err = ParseTemperature("75%")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, v, 1e-9)

	v, err = ParseTemperature("1")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)

	_, err = ParseTemperature("-1")
	assert.Error(t, err)
	_, err = ParseTemperature("150")
	assert.Error(t, err)
	_, err = ParseTemperature("warm")
	assert.Error(t, err)
}
