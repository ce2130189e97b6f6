// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/model"
)

// Settings are the per-send choices a user can change mid-session.
type Settings struct {
	Model        string
	SystemPrompt string
	// Temperature is in [0,1].
	Temperature float64
	Sources     bool
	StoreKind   string
	Policy      model.StreamPolicy
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", s.Temperature)
	}
	return nil
}

// SettingsFromConfig extracts chat settings from cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	policy, err := model.ParseStreamPolicy(cfg.Chat.StreamPolicy)
	if err != nil {
		return Settings{}, err
	}
	s := Settings{
		Model:        cfg.Chat.Model,
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		Sources:      cfg.Chat.Sources,
		StoreKind:    cfg.Session.StoreKind,
		Policy:       policy,
	}
	return s, s.Validate()
}

// ParamsFromConfig extracts the session parameters from cfg.
func ParamsFromConfig(cfg *config.Config) endpoint.Params {
	return endpoint.Params{
		SessionID:    cfg.Session.ID,
		BucketName:   cfg.Session.Bucket,
		FilePath:     cfg.Session.Path,
		ProxyEnabled: cfg.Server.Proxy,
	}
}
