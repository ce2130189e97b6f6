// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StreamPolicyAppend, cfg.Chat.StreamPolicy)
	assert.Equal(t, "faiss", cfg.Session.StoreKind)
	assert.Equal(t, "/api/v1/chat/vectorstore", cfg.Server.SendPath)
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	cfg := Default()
	cfg.Chat.Temperature = 1.5
	cfg.Chat.StreamPolicy = "sometimes"
	cfg.Server.WSURL = "http://example.com"
	cfg.Server.SendTimeoutSecs = -1

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{
		"chat.temperature",
		"chat.stream_policy",
		"server.ws_url",
		"server.send_timeout_secs",
	}, fields)
}

func TestGetSet_DotNotation(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("session.bucket", "docs"))
	require.NoError(t, cfg.Set("chat.temperature", "0.2"))
	require.NoError(t, cfg.Set("server.proxy", "on"))
	require.NoError(t, cfg.Set("ui.word_wrap", "80"))
	require.NoError(t, cfg.Set("chat.stream-policy", "merge"))

	v, err := cfg.Get("session.bucket")
	require.NoError(t, err)
	assert.Equal(t, "docs", v)

	v, err = cfg.Get("chat.temperature")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, v, 1e-9)

	assert.True(t, cfg.Server.Proxy)
	assert.Equal(t, 80, cfg.UI.WordWrap)
	assert.Equal(t, StreamPolicyMerge, cfg.Chat.StreamPolicy)
}

func TestGetSet_Errors(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("")
	assert.Error(t, err)
	_, err = cfg.Get("chat.nope")
	assert.Error(t, err)
	_, err = cfg.Get("chat")
	assert.Error(t, err, "sections are not values")
	assert.Error(t, cfg.Set("chat.model.deep", "x"))
	assert.Error(t, cfg.Set("chat.temperature", "warm"))
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Session.ID = "s1"
	cfg.Session.Path = "docs/guide.pdf"
	cfg.Chat.StreamPolicy = StreamPolicyMerge
	cfg.Server.APIKey = "secret"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.Session.ID)
	assert.Equal(t, "docs/guide.pdf", loaded.Session.Path)
	assert.Equal(t, StreamPolicyMerge, loaded.Chat.StreamPolicy)
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chat":{"model":"gpt-4","temperature":0.9}}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", cfg.Chat.Model)
	assert.InDelta(t, 0.9, cfg.Chat.Temperature, 1e-9)
	// Untouched sections keep their defaults.
	assert.Equal(t, "monokai", cfg.UI.CodeStyle)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\ntemperature = 3.0\n"), 0600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_SESSION", "env-session")
	t.Setenv("DOCCHAT_PROXY", "true")
	t.Setenv("DOCCHAT_TEMPERATURE", "70")
	t.Setenv("DOCCHAT_API_KEY", "k")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "env-session", cfg.Session.ID)
	assert.True(t, cfg.Server.Proxy)
	assert.InDelta(t, 0.7, cfg.Chat.Temperature, 1e-9)
	assert.Equal(t, "k", cfg.Server.APIKey)
}

func TestString_RedactsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Server.APIKey = "sk-very-secret"
	out := cfg.String()
	assert.NotContains(t, out, "sk-very-secret")
	assert.Contains(t, out, "[REDACTED]")
	assert.Equal(t, "sk-very-secret", cfg.Server.APIKey)
}

func TestWatch_DeliversReloadedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	w, err := Watch(path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	cfg := Default()
	cfg.Chat.Model = "gpt-4o"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-w.Changes():
		assert.Equal(t, "gpt-4o", got.Chat.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered")
	}
}

func TestWatch_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	w, err := Watch(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
