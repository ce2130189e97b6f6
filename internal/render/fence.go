// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// Segment is a run of prose or a fenced code block.
type Segment struct {
	Code     bool
	Language string
	// Text is the prose, or the raw code without its trailing newline.
	Text string
	// Open is set for a code block whose closing fence has not arrived yet.
	Open bool
}

// Split cuts markdown into prose and language-tagged code segments. A fence
// without a language stays in the surrounding prose.
func Split(text string) []Segment {
	var (
		segs     []Segment
		prose    []string
		code     []string
		inFence  bool
		tagged   bool
		language string
	)

	flushProse := func() {
		if len(prose) == 0 {
			return
		}
		segs = append(segs, Segment{Text: strings.Join(prose, "\n")})
		prose = nil
	}
	flushCode := func(open bool) {
		segs = append(segs, Segment{
			Code:     true,
			Language: language,
			Text:     strings.TrimSuffix(strings.Join(code, "\n"), "\n"),
			Open:     open,
		})
		code = nil
	}

	for _, line := range strings.Split(text, "\n") {
		fence := strings.HasPrefix(strings.TrimSpace(line), "```")
		switch {
		case fence && !inFence:
			inFence = true
			language = fenceLanguage(line)
			tagged = language != ""
			if tagged {
				flushProse()
			} else {
				prose = append(prose, line)
			}
		case fence && inFence:
			inFence = false
			if tagged {
				flushCode(false)
			} else {
				prose = append(prose, line)
			}
			language = ""
		case inFence && tagged:
			code = append(code, line)
		default:
			prose = append(prose, line)
		}
	}

	if inFence && tagged {
		flushCode(true)
	}
	flushProse()
	return segs
}

// fenceLanguage returns the language tag of an opening fence line, the
// first word after the backticks.
func fenceLanguage(line string) string {
	tag := strings.TrimLeft(strings.TrimSpace(line), "`")
	if f := strings.Fields(tag); len(f) > 0 {
		return strings.ToLower(f[0])
	}
	return ""
}
