// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewThemeFor(t *testing.T) {
	assert.Equal(t, "dark", NewThemeFor("dark").Name())
	assert.Equal(t, "light", NewThemeFor("light").Name())
}

func TestLayoutMode(t *testing.T) {
	th := NewTheme()
	for width, want := range map[int]LayoutMode{40: LayoutNarrow, 80: LayoutMedium, 140: LayoutWide} {
		th.SetSize(width, 24)
		assert.Equal(t, want, th.GetLayoutMode(), "width %d", width)
	}
}

func TestRenderStatus(t *testing.T) {
	assert.Contains(t, RenderSuccess("saved"), "[OK] saved")
	assert.Contains(t, RenderError("failed"), "[X] failed")
	assert.Contains(t, RenderWarning("careful"), "[!] careful")
	assert.Contains(t, RenderInfo("note"), "[i] note")
}
