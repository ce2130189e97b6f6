// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the chat session controller.
//
// A Controller is the single handle a front end holds for a conversation.
// It owns the message log, the streaming connection and the send path, and
// derives the header text and input affordances from them.
//
// # Usage
//
//	ctrl, err := session.FromConfig(cfg, logger)
//	if err != nil { ... }
//	defer ctrl.Shutdown()
//	ctrl.Start()
//
//	// On the event loop:
//	ev := <-ctrl.Events()
//	up := ctrl.Dispatch(ev)
//
//	// Submitting blocks until the service acknowledges the question.
//	// The answer arrives later as stream events.
//	err = ctrl.Submit(ctx, "What does chapter 2 cover?")
//
// Front ends that must not block their loop split Submit into Prepare,
// Send and Complete.
package session
