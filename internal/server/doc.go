// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is a local development backend that speaks both wire
// protocols the chat client uses.
//
// Endpoints:
//   - GET  /ws/proxy?session=                                 - streaming socket (proxy form)
//   - GET  /ws/v1/chat/vectorstore?api_key=&bucket=&path=&session= - streaming socket (direct form)
//   - POST /api/v1/chat/vectorstore                           - question submission
//   - GET  /healthz                                           - health check
//
// A submitted question is acknowledged immediately and its answer is
// streamed to the socket registered for the request's channel as
// start, stream and end frames.
package server
