// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/session"
)

// The line-oriented commands run the event loop on their own goroutine:
// they alternate between waiting for input, sending, and pumping transport
// events until the step they are waiting for is over.

// ErrNoAnswer is returned when nothing arrives before the first-response
// timeout.
var ErrNoAnswer = errors.New("no answer received")

// awaitOpen dispatches events until the connection is open.
func awaitOpen(ctx context.Context, ctrl *session.Controller) error {
	if p := ctrl.Params(); !p.Complete() {
		return usageErrorf("session incomplete: missing %s", strings.Join(p.Missing(), ", "))
	}
	if ctrl.ConnState() == conn.StateOpen {
		return nil
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		done   bool
		result error
	)
	err := ctrl.Pump(pctx, func(up conn.Update) {
		if done || !up.StateChanged {
			return
		}
		switch up.State {
		case conn.StateOpen:
			done = true
		case conn.StateClosed:
			done, result = true, up.Err
		default:
			return
		}
		cancel()
	})
	if done {
		return result
	}
	return fmt.Errorf("waiting for connection: %w", err)
}

// drain applies events that are already queued without waiting.
func drain(ctrl *session.Controller, handle func(conn.Update)) {
	for {
		select {
		case ev := <-ctrl.Events():
			up := ctrl.Dispatch(ev)
			if !up.Stale && handle != nil {
				handle(up)
			}
		default:
			return
		}
	}
}

// answerTimeouts bounds collectAnswer: first is the wait for the first
// content frame, idle the quiet period that ends an answer without an end
// frame.
type answerTimeouts struct {
	first time.Duration
	idle  time.Duration
}

// collectAnswer pumps events until the answer ends: an end frame, the idle
// timeout after content, or the connection closing after content. handle
// sees every non-stale update.
func collectAnswer(ctx context.Context, ctrl *session.Controller, t answerTimeouts, handle func(conn.Update)) error {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := time.AfterFunc(t.first, cancel)
	defer timer.Stop()

	var (
		got    bool
		done   bool
		result error
	)
	finish := func(err error) {
		done, result = true, err
		cancel()
	}
	_ = ctrl.Pump(pctx, func(up conn.Update) {
		if done {
			return
		}
		if handle != nil {
			handle(up)
		}
		switch {
		case up.StateChanged && up.State == conn.StateClosed:
			if got {
				finish(nil)
			} else {
				finish(up.Err)
			}
			return
		case up.ServerError != "":
			finish(fmt.Errorf("server error: %s", up.ServerError))
			return
		case up.Frame == nil:
			return
		}
		switch up.Frame.Kind {
		case conn.FrameEnd:
			finish(nil)
		case conn.FrameContent:
			got = true
			timer.Reset(t.idle)
		}
	})

	switch {
	case done:
		return result
	case ctx.Err() != nil:
		return ctx.Err()
	case got:
		return nil
	}
	return fmt.Errorf("%w within %s", ErrNoAnswer, t.first)
}

// answerSince joins the assistant content that follows the last client turn.
func answerSince(turns []model.ChatTurn) string {
	start := 0
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].IsClient() {
			start = i + 1
			break
		}
	}
	var b strings.Builder
	for _, t := range turns[start:] {
		if t.Role == model.RoleAssistant {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}
