// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colours and lipgloss styles of the chat TUI.

# Colours (colors.go)

Every colour is a lipgloss.AdaptiveColor, so the palette follows the
terminal background unless a theme forces dark or light:

  - Purple - assistant turns and focus
  - Cyan - client turns and the active send indicator
  - Emerald - connected state
  - Amber - connecting state and warnings
  - Rose - errors and the closed state

# Theme (theme.go)

Theme bundles the styles used by the components. NewTheme detects the
colour profile with termenv; NewThemeFor forces "dark" or "light".
*/
package styles
