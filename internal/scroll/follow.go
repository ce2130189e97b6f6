// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scroll keeps a chat viewport following new content while the
// user is at the bottom, and leaves it alone while they read scrollback.
package scroll

import "sync"

// Tolerance is how far from the bottom, in lines, still counts as pinned.
const Tolerance = 1

// Viewport is the minimal view of a scrollable area. Heights and offsets
// are in lines.
type Viewport interface {
	YOffset() int
	SetYOffset(int)
	ContentHeight() int
	VisibleHeight() int
}

// Follow tracks whether a viewport is pinned to the bottom. The zero value
// is not pinned; use NewFollow.
type Follow struct {
	mu     sync.Mutex
	pinned bool
}

// NewFollow returns a policy that starts pinned.
func NewFollow() *Follow {
	return &Follow{pinned: true}
}

// AtBottom reports whether vp is within Tolerance of its bottom.
func AtBottom(vp Viewport) bool {
	return vp.ContentHeight()-vp.VisibleHeight() <= vp.YOffset()+Tolerance
}

// Pinned reports the current follow state.
func (f *Follow) Pinned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pinned
}

// OnScroll recomputes the follow state after the user scrolled vp.
func (f *Follow) OnScroll(vp Viewport) bool {
	at := AtBottom(vp)
	f.mu.Lock()
	f.pinned = at
	f.mu.Unlock()
	return at
}

// OnContentChange must be called after vp has laid out new content. When
// pinned the offset moves to the new content height; otherwise vp is left
// untouched. It reports whether it scrolled.
func (f *Follow) OnContentChange(vp Viewport) bool {
	if !f.Pinned() {
		return false
	}
	vp.SetYOffset(vp.ContentHeight())
	return true
}

// Pin forces the follow state, as for an explicit jump to the bottom.
func (f *Follow) Pin(vp Viewport) {
	f.mu.Lock()
	f.pinned = true
	f.mu.Unlock()
	if vp != nil {
		vp.SetYOffset(vp.ContentHeight())
	}
}
