// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/model"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		state    conn.State
		question string
		want     UIState
	}{
		{conn.StateUnresolved, "", UIState{Header: HeaderLoading, Send: AffordanceIdle}},
		{conn.StateConnecting, "hi", UIState{Header: HeaderLoading, Send: AffordanceActive}},
		{conn.StateOpen, "", UIState{Header: HeaderReady, InputEnabled: true, Send: AffordanceIdle}},
		{conn.StateOpen, "  ", UIState{Header: HeaderReady, InputEnabled: true, Send: AffordanceIdle}},
		{conn.StateOpen, "hi", UIState{Header: HeaderReady, InputEnabled: true, Send: AffordanceActive}},
		{conn.StateClosed, "hi", UIState{Header: HeaderLoading, Send: AffordanceActive}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Derive(tt.state, tt.question), "%s/%q", tt.state, tt.question)
	}
}

func TestUIState_CanSend(t *testing.T) {
	open := Derive(conn.StateOpen, "q")
	assert.True(t, open.CanSend(false))
	assert.False(t, open.CanSend(true))
	assert.False(t, Derive(conn.StateOpen, "").CanSend(false))
	assert.False(t, Derive(conn.StateClosed, "q").CanSend(false))
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Chat.StreamPolicy = "merge"
	cfg.Chat.Sources = true

	s, err := SettingsFromConfig(cfg)
	assert.NoError(t, err)
	assert.Equal(t, model.PolicyMerge, s.Policy)
	assert.True(t, s.Sources)
	assert.Equal(t, "faiss", s.StoreKind)

	cfg.Chat.StreamPolicy = "bogus"
	_, err = SettingsFromConfig(cfg)
	assert.Error(t, err)
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Session.ID = "s"
	cfg.Session.Bucket = "b"
	cfg.Session.Path = "p"
	cfg.Server.Proxy = true

	p := ParamsFromConfig(cfg)
	assert.Equal(t, "s", p.SessionID)
	assert.Equal(t, "b", p.BucketName)
	assert.Equal(t, "p", p.FilePath)
	assert.True(t, p.ProxyEnabled)
}
