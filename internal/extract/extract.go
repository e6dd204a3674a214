// Package extract recovers machine-readable JSON from raw LLM responses.
//
// Completion output rarely arrives as clean JSON: models wrap it in prose,
// markdown fences, or emit almost-JSON with trailing commas and unquoted
// keys. Extract tries a sequence of increasingly forgiving strategies and
// never fails hard - a response with no recoverable JSON yields nothing,
// which callers treat as "no items extracted".
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Extract returns a substring of raw (possibly repaired) that parses as a
// JSON value, or ok=false when no strategy recovers one.
//
// Strategies, in order, first success wins:
//  1. The whole text parses as-is.
//  2. Content inside a ```json fenced block.
//  3. Content inside any fenced block whose body starts with '[' or '{'.
//  4. The largest bracket-balanced [...] or {...} substring, found with a
//     scanner that skips brackets inside quoted strings.
//  5. A syntax-repair pass over the best candidates, then reparse.
func Extract(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if valid(raw) {
		return raw, true
	}

	candidates := []string{}
	if c, ok := fencedBlock(raw, "json"); ok {
		candidates = append(candidates, c)
	}
	for _, c := range fencedBlocks(raw) {
		t := strings.TrimSpace(c)
		if strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
			candidates = append(candidates, t)
		}
	}
	if span := largestBalancedSpan(raw); span != "" {
		candidates = append(candidates, span)
	}

	for _, c := range candidates {
		if valid(c) {
			return c, true
		}
	}

	// Last resort: repair pass over the candidates and the raw text.
	for _, c := range append(candidates, raw) {
		repaired := Repair(c)
		if valid(repaired) {
			return repaired, true
		}
	}

	return "", false
}

func valid(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return json.Valid([]byte(s))
}

// fencedBlock returns the content of the first ```<lang> fence.
func fencedBlock(raw, lang string) (string, bool) {
	marker := "```" + lang
	start := strings.Index(raw, marker)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(marker):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// fencedBlocks returns the contents of all ``` fences, language tags stripped.
func fencedBlocks(raw string) []string {
	var blocks []string
	rest := raw
	for {
		start := strings.Index(rest, "```")
		if start == -1 {
			return blocks
		}
		rest = rest[start+3:]
		// Drop a language tag on the opening line.
		if nl := strings.IndexByte(rest, '\n'); nl != -1 && nl < 40 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		end := strings.Index(rest, "```")
		if end == -1 {
			blocks = append(blocks, strings.TrimSpace(rest))
			return blocks
		}
		blocks = append(blocks, strings.TrimSpace(rest[:end]))
		rest = rest[end+3:]
	}
}

// largestBalancedSpan scans raw character by character and returns the
// largest balanced [...] or {...} substring. Brackets inside quoted strings
// are skipped by tracking in-string and escape state.
func largestBalancedSpan(raw string) string {
	best := ""
	for _, opener := range []byte{'[', '{'} {
		closer := byte(']')
		if opener == '{' {
			closer = '}'
		}
		for i := 0; i < len(raw); i++ {
			if raw[i] != opener {
				continue
			}
			if end := matchBracket(raw, i, opener, closer); end != -1 {
				span := raw[i : end+1]
				if len(span) > len(best) {
					best = span
				}
				// Later openers inside this span cannot yield a larger one.
				i = end
			}
		}
	}
	return best
}

// matchBracket returns the index of the closer matching the opener at start,
// or -1 if the text ends unbalanced.
func matchBracket(s string, start int, opener, closer byte) int {
	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(s); i++ {
		ch := s[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if ch == '\\' && inString {
			escapeNext = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	adjacentObjRe   = regexp.MustCompile(`}\s*{`)
	adjacentArrRe   = regexp.MustCompile(`]\s*\[`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	lineCommentRe   = regexp.MustCompile(`(?m)^\s*//.*$`)
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// Repair applies best-effort fixes for the JSON syntax mistakes models make
// most often: comments, trailing commas, missing commas between adjacent
// values, bare identifier keys, and single-quoted strings. The result is not
// guaranteed to parse; callers must re-validate.
func Repair(s string) string {
	s = strings.TrimSpace(s)
	s = lineCommentRe.ReplaceAllString(s, "")
	s = blockCommentRe.ReplaceAllString(s, "")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = adjacentObjRe.ReplaceAllString(s, "},{")
	s = adjacentArrRe.ReplaceAllString(s, "],[")
	s = bareKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = replaceSingleQuotes(s)
	return s
}

// replaceSingleQuotes converts single-quoted strings to double-quoted ones,
// leaving apostrophes inside double-quoted strings alone.
func replaceSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	escapeNext := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escapeNext {
			b.WriteByte(ch)
			escapeNext = false
			continue
		}
		if ch == '\\' {
			b.WriteByte(ch)
			escapeNext = true
			continue
		}
		if ch == '"' {
			inDouble = !inDouble
			b.WriteByte(ch)
			continue
		}
		if ch == '\'' && !inDouble {
			b.WriteByte('"')
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
