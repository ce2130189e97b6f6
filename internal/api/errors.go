// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Sentinel errors matched with errors.Is against a *SendRejectedError.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// SendRejectedError reports a failed send. Detail is the text shown to the
// user: the server's detail field when present, otherwise a description of
// the failure.
type SendRejectedError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int
	Detail string
	Err    error
}

func (e *SendRejectedError) Error() string {
	return e.Detail
}

func (e *SendRejectedError) Unwrap() error {
	return e.Err
}

// Is maps well-known statuses onto the sentinel errors.
func (e *SendRejectedError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// errorBody is the FastAPI-style error response.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

// parseDetail extracts a human-readable detail from an error response body.
// It returns "" when the body has no usable detail.
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var items []validationItem
	if err := json.Unmarshal(eb.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if len(it.Loc) > 0 {
				parts := make([]string, 0, len(it.Loc))
				for _, l := range it.Loc {
					b, _ := json.Marshal(l)
					parts = append(parts, strings.Trim(string(b), `"`))
				}
				msgs = append(msgs, strings.Join(parts, ".")+": "+it.Msg)
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(eb.Detail)
}
