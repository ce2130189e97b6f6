// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	ToastKindStatus ToastKind = iota
	ToastKindError
	ToastKindWarning
	ToastKindSuccess
)

const (
	// DefaultToastDuration applies to status and success toasts.
	DefaultToastDuration = 4 * time.Second
	// ErrorToastDuration is longer so errors can be read.
	ErrorToastDuration = 8 * time.Second
)

// Toast is a non-blocking notification.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired reports whether the toast should be dismissed at now.
func (t Toast) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager keeps the visible toasts, newest first.
type ToastManager struct {
	mu        sync.Mutex
	toasts    []Toast
	nextID    int
	maxToasts int
}

// NewToastManager creates a manager showing at most three toasts.
func NewToastManager() *ToastManager {
	return &ToastManager{nextID: 1, maxToasts: 3}
}

// Add shows a toast and returns its id.
func (m *ToastManager) Add(kind ToastKind, message string) int {
	d := DefaultToastDuration
	if kind == ToastKindError || kind == ToastKindWarning {
		d = ErrorToastDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t := Toast{ID: m.nextID, Message: message, Kind: kind, CreatedAt: time.Now(), Duration: d}
	m.nextID++
	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > m.maxToasts {
		m.toasts = m.toasts[:m.maxToasts]
	}
	return t.ID
}

// AddError shows an error toast.
func (m *ToastManager) AddError(message string) int { return m.Add(ToastKindError, message) }

// AddStatus shows a status toast.
func (m *ToastManager) AddStatus(message string) int { return m.Add(ToastKindStatus, message) }

// AddSuccess shows a success toast.
func (m *ToastManager) AddSuccess(message string) int { return m.Add(ToastKindSuccess, message) }

// Tick drops toasts expired at now and returns the ones it dropped.
func (m *ToastManager) Tick(now time.Time) []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []Toast
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if t.IsExpired(now) {
			expired = append(expired, t)
		} else {
			active = append(active, t)
		}
	}
	m.toasts = active
	return expired
}

// Dismiss removes the newest toast, if any, and returns it.
func (m *ToastManager) Dismiss() (Toast, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toasts) == 0 {
		return Toast{}, false
	}
	t := m.toasts[0]
	m.toasts = m.toasts[1:]
	return t, true
}

// Toasts returns a copy of the visible toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// HasToasts reports whether any toast is visible.
func (m *ToastManager) HasToasts() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toasts) > 0
}

// ToastTickMsg is sent periodically to expire toasts.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd ticks every 250ms.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToast renders one toast at most width cells wide. Error text is
// shown verbatim.
func RenderToast(t Toast, width int) string {
	maxWidth := 60
	if width > 0 && width-4 < maxWidth {
		maxWidth = max(20, width-4)
	}

	color := styles.Cyan
	prefix := styles.StatusIndicators.Info
	switch t.Kind {
	case ToastKindError:
		color, prefix = styles.Rose, styles.StatusIndicators.Error
	case ToastKindWarning:
		color, prefix = styles.Amber, styles.StatusIndicators.Warning
	case ToastKindSuccess:
		color, prefix = styles.Emerald, styles.StatusIndicators.Success
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Foreground(color).
		Padding(0, 1).
		Width(maxWidth).
		Render(prefix + " " + t.Message)
}

// RenderToastStack renders toasts right-aligned within width.
func RenderToastStack(toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for _, t := range toasts {
		rendered = append(rendered, RenderToast(t, width))
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right,
		lipgloss.JoinVertical(lipgloss.Right, rendered...))
}
