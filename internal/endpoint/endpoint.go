// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package endpoint derives the streaming URL for a chat session.
//
// Two forms are recognised:
//
//	proxy:  {base}/ws/proxy?session={sessionId}
//	direct: {base}/ws/v1/chat/vectorstore?api_key={key}&bucket={bucket}&path={path}&session={sessionId}
//
// A URL is only produced once the session id and file path are known, plus
// the bucket when connecting directly.
package endpoint

import (
	"net/url"
	"strings"
)

// Paths of the two streaming endpoints.
const (
	ProxyPath  = "/ws/proxy"
	DirectPath = "/ws/v1/chat/vectorstore"
)

// Params identifies the conversation and the document it is about.
type Params struct {
	SessionID    string
	BucketName   string
	FilePath     string
	ProxyEnabled bool
}

// Complete reports whether p carries everything needed to connect.
func (p Params) Complete() bool {
	if p.SessionID == "" || p.FilePath == "" {
		return false
	}
	return p.ProxyEnabled || p.BucketName != ""
}

// Missing lists the parameter names still required, in display order.
func (p Params) Missing() []string {
	var missing []string
	if p.SessionID == "" {
		missing = append(missing, "session")
	}
	if !p.ProxyEnabled && p.BucketName == "" {
		missing = append(missing, "bucket")
	}
	if p.FilePath == "" {
		missing = append(missing, "path")
	}
	return missing
}

// Resolve builds the streaming URL for p. ok is false while p is incomplete.
func Resolve(base, apiKey string, p Params) (u string, ok bool) {
	if !p.Complete() {
		return "", false
	}
	base = strings.TrimRight(base, "/")

	if p.ProxyEnabled {
		return base + ProxyPath + "?session=" + url.QueryEscape(p.SessionID), true
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString(DirectPath)
	sb.WriteString("?api_key=")
	sb.WriteString(url.QueryEscape(apiKey))
	sb.WriteString("&bucket=")
	sb.WriteString(url.QueryEscape(p.BucketName))
	sb.WriteString("&path=")
	sb.WriteString(url.QueryEscape(p.FilePath))
	sb.WriteString("&session=")
	sb.WriteString(url.QueryEscape(p.SessionID))
	return sb.String(), true
}

// Redact hides the api_key query value so URLs can be logged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("api_key") == "" {
		return raw
	}
	q.Set("api_key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver remembers the last resolved URL so that re-resolving unchanged
// parameters is a no-op. It is not safe for concurrent use.
type Resolver struct {
	base   string
	apiKey string

	current string
}

// NewResolver creates a resolver for the given base URL and API key.
func NewResolver(base, apiKey string) *Resolver {
	return &Resolver{base: base, apiKey: apiKey}
}

// Change describes the outcome of a re-resolution.
type Change int

const (
	// Unchanged means the resolved URL is the same as before.
	Unchanged Change = iota
	// Resolved means a new URL is available and should be connected.
	Resolved
	// Unresolved means a URL was available but the parameters are no
	// longer complete.
	Unresolved
)

// Update re-resolves with p and reports what changed. The returned URL is
// the current one ("" when unresolved).
func (r *Resolver) Update(p Params) (string, Change) {
	u, ok := Resolve(r.base, r.apiKey, p)
	switch {
	case !ok && r.current == "":
		return "", Unchanged
	case !ok:
		r.current = ""
		return "", Unresolved
	case u == r.current:
		return u, Unchanged
	}
	r.current = u
	return u, Resolved
}

// SetBase changes the base URL and API key. The next Update compares
// against the previously resolved URL, so a base change triggers a
// reconnect.
func (r *Resolver) SetBase(base, apiKey string) {
	r.base = base
	r.apiKey = apiKey
}

// Current returns the last resolved URL or "".
func (r *Resolver) Current() string {
	return r.current
}
