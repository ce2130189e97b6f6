// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/docchat-tui/internal/api"
)

// AnswerFunc produces the canned answer streamed for a request.
type AnswerFunc func(req api.SendRequest) string

// EchoAnswer describes the request back, with a code sample when the
// question asks for code.
func EchoAnswer(req api.SendRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You asked: %s\n\n", req.Question)

	kinds := make([]string, 0, len(req.Context))
	for k := range req.Context {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ref := req.Context[k]
		fmt.Fprintf(&sb, "Searched `%s` in bucket `%s` using the %s store.\n", ref.Path, ref.BucketName, k)
	}
	fmt.Fprintf(&sb, "Model **%s** at temperature %.2f.", req.Model, req.Temperature)

	if strings.Contains(strings.ToLower(req.Question), "code") {
		sb.WriteString("\n\n```go\npackage main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hello from the document\")\n}\n```")
	}
	if req.Sources {
		for _, k := range kinds {
			fmt.Fprintf(&sb, "\n\nSource: %s/%s", req.Context[k].BucketName, req.Context[k].Path)
		}
	}
	return sb.String()
}

// chunk splits text into pieces of n words, keeping the whitespace so the
// pieces concatenate back to text. n <= 0 returns text whole.
func chunk(text string, n int) []string {
	if n <= 0 || text == "" {
		return []string{text}
	}
	var (
		out   []string
		cur   strings.Builder
		words int
		inWS  bool
	)
	for _, r := range text {
		isWS := r == ' ' || r == '\n' || r == '\t'
		if !isWS && inWS {
			words++
			if words == n {
				out = append(out, cur.String())
				cur.Reset()
				words = 0
			}
		}
		inWS = isWS
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
