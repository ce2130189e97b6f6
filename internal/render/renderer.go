// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configure a Renderer.
type Options struct {
	// Theme is "dark" or "light".
	Theme string
	// CodeStyle names a chroma style.
	CodeStyle string
	// Width is the wrap width in cells.
	Width int
	// Plain disables glamour, leaving prose as typed.
	Plain  bool
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Theme == "" {
		o.Theme = "dark"
	}
	if o.CodeStyle == "" {
		o.CodeStyle = DefaultCodeStyle
	}
	if o.Width <= 0 {
		o.Width = 80
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type palette struct {
	client, assistant, muted, badge, border lipgloss.TerminalColor
}

func paletteFor(theme string) palette {
	if theme == "light" {
		return palette{
			client:    lipgloss.Color("#1D4ED8"),
			assistant: lipgloss.Color("#7C3AED"),
			muted:     lipgloss.Color("#6B7280"),
			badge:     lipgloss.Color("#E5E5E5"),
			border:    lipgloss.Color("#D4D4D4"),
		}
	}
	return palette{
		client:    lipgloss.Color("#60A5FA"),
		assistant: lipgloss.Color("#A78BFA"),
		muted:     lipgloss.Color("#A6ADC8"),
		badge:     lipgloss.Color("#313244"),
		border:    lipgloss.Color("#45475A"),
	}
}

// =============================================================================
// RENDERER
// =============================================================================

// Renderer renders turns. It is safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	opts    Options
	md      *glamour.TermRenderer
	palette palette
	cache   *cache.Cache
	logger  *zap.Logger
}

// New creates a renderer.
func New(opts Options) (*Renderer, error) {
	opts = opts.withDefaults()
	r := &Renderer{
		opts:    opts,
		palette: paletteFor(opts.Theme),
		cache:   cache.New(10*time.Minute, 20*time.Minute),
		logger:  opts.Logger.Named("render"),
	}
	if err := r.rebuild(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) rebuild() error {
	if r.opts.Plain {
		r.md = nil
		return nil
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.opts.Theme),
		glamour.WithWordWrap(r.opts.Width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	r.md = md
	return nil
}

// SetWidth changes the wrap width. Cached output for other widths is kept
// but no longer matches.
func (r *Renderer) SetWidth(width int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width <= 0 || width == r.opts.Width {
		return nil
	}
	r.opts.Width = width
	return r.rebuild()
}

// SetTheme switches between the dark and light styles.
func (r *Renderer) SetTheme(theme string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if theme == r.opts.Theme {
		return nil
	}
	r.opts.Theme = theme
	r.palette = paletteFor(theme)
	r.cache.Flush()
	return r.rebuild()
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.Width
}

// Label returns the role heading shown above a turn.
func Label(role model.Role) string {
	return role.Icon() + " " + role.DisplayName() + ":"
}

// Turns renders a whole log snapshot, one block per turn.
func (r *Renderer) Turns(turns []model.ChatTurn) string {
	blocks := make([]string, 0, len(turns))
	for _, t := range turns {
		blocks = append(blocks, r.Turn(t))
	}
	return strings.Join(blocks, "\n\n")
}

// Turn renders a labelled turn.
func (r *Renderer) Turn(t model.ChatTurn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cacheKey(t, r.opts.Width)
	if v, ok := r.cache.Get(key); ok {
		return v.(string)
	}

	color := r.palette.assistant
	if t.IsClient() {
		color = r.palette.client
	}
	label := lipgloss.NewStyle().Bold(true).Foreground(color).Render(Label(t.Role))
	out := label + "\n" + r.markdownLocked(t.Content)

	r.cache.SetDefault(key, out)
	return out
}

// Markdown renders content without a role label.
func (r *Renderer) Markdown(content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markdownLocked(content)
}

func (r *Renderer) markdownLocked(content string) string {
	parts := make([]string, 0, 4)
	for _, seg := range Split(content) {
		if seg.Code {
			parts = append(parts, r.codeBlock(seg))
			continue
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		parts = append(parts, r.prose(seg.Text))
	}
	return strings.Join(parts, "\n")
}

func (r *Renderer) prose(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		r.logger.Debug("markdown render failed", zap.Error(err))
		return text
	}
	return strings.Trim(out, "\n")
}

// cacheKey identifies a rendering of t at width. Content is hashed because
// a merged streaming turn keeps its id while growing.
func cacheKey(t model.ChatTurn, width int) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(t.Role))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(t.Content))
	return fmt.Sprintf("%s:%d:%x", t.ID, width, h.Sum64())
}
