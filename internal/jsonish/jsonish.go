// Package jsonish extracts JSON values from free text produced by
// generative models. Upstream collaborators have no output-schema
// guarantee: objects arrive wrapped in prose, inside code fences, with
// single quotes, smart quotes, or trailing commas. Parse works through a
// layered set of repair strategies and never returns an error or panics;
// total failure yields nil and the caller applies its own safe default.
package jsonish

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	fenceRe     = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	candidateRe = regexp.MustCompile(`(?s)\{.*?\}`)
	trailingRe  = regexp.MustCompile(`,\s*([}\]])`)

	scoreRe          = regexp.MustCompile(`(?i)"?(?:discrepancy_)?score"?\s*[:=]\s*([0-9]*\.?[0-9]+)`)
	reasoningRe      = regexp.MustCompile(`(?i)"?reasoning"?\s*[:=]\s*"((?:[^"\\]|\\.)*)"`)
	recommendationRe = regexp.MustCompile(`(?i)"?(?:recommendation|summary)"?\s*[:=]\s*"((?:[^"\\]|\\.)*)"`)
)

var quoteNormalizer = strings.NewReplacer(
	"“", `"`, // left double
	"”", `"`, // right double
	"„", `"`,
	"‘", "'",
	"’", "'",
)

// Parse extracts a JSON object from text. Strategies are tried in order,
// first success wins:
//
//  1. strip Markdown code fences
//  2. strict-parse each non-greedy {...} candidate
//  3. brace-depth-balanced scan from the first '{' (handles nested
//     objects that defeat the non-greedy scan), smart quotes normalized
//  4. tolerant repair: single quotes to double quotes, trailing commas
//     stripped, then strict retry
//  5. field-level regex extraction of score / reasoning / recommendation
//
// Returns nil when every strategy fails.
func Parse(text string) map[string]any {
	body := stripFences(text)

	for _, cand := range candidateRe.FindAllString(body, -1) {
		if obj := strictObject(cand); obj != nil {
			return obj
		}
	}

	if cand, ok := balancedObject(quoteNormalizer.Replace(body)); ok {
		if obj := strictObject(cand); obj != nil {
			return obj
		}
		if obj := strictObject(repair(cand)); obj != nil {
			return obj
		}
	}

	for _, cand := range candidateRe.FindAllString(body, -1) {
		if obj := strictObject(repair(quoteNormalizer.Replace(cand))); obj != nil {
			return obj
		}
	}

	return extractFields(body)
}

// ParseArray extracts a JSON array from text using the same fence
// stripping and repair rules as Parse. Returns nil when nothing parses.
func ParseArray(text string) []any {
	body := quoteNormalizer.Replace(stripFences(text))
	cand, ok := balancedSpan(body, '[', ']')
	if !ok {
		return nil
	}
	for _, attempt := range []string{cand, repair(cand)} {
		var arr []any
		if err := json.Unmarshal([]byte(attempt), &arr); err == nil {
			return arr
		}
	}
	return nil
}

func stripFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

func strictObject(cand string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(cand), &obj); err != nil {
		return nil
	}
	return obj
}

func balancedObject(s string) (string, bool) {
	return balancedSpan(s, '{', '}')
}

// balancedSpan returns the substring from the first open delimiter to
// its matching close, tracking string literals so delimiters inside
// quoted values do not skew the depth count.
func balancedSpan(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func repair(cand string) string {
	cand = strings.ReplaceAll(cand, "'", `"`)
	return trailingRe.ReplaceAllString(cand, "$1")
}

// extractFields is the last resort: pull the known moderator fields
// straight out of the raw text.
func extractFields(body string) map[string]any {
	out := map[string]any{}
	if m := scoreRe.FindStringSubmatch(body); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			out["score"] = v
		}
	}
	if m := reasoningRe.FindStringSubmatch(body); m != nil {
		out["reasoning"] = m[1]
	}
	if m := recommendationRe.FindStringSubmatch(body); m != nil {
		out["recommendation"] = m[1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
