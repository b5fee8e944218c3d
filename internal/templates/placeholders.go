package templates

import (
	"regexp"
	"sort"
	"strconv"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Placeholders returns the distinct tokens referenced in text, in order of first appearance.
func Placeholders(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, m[1])
	}
	return out
}

// IsPositional reports whether token is a numeric {{n}} placeholder.
func IsPositional(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// orderedTokens sorts positional tokens numerically and keeps named tokens in appearance order.
func orderedTokens(tokens []string) []string {
	out := append([]string(nil), tokens...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := IsPositional(out[i]), IsPositional(out[j])
		if pi && pj {
			a, _ := strconv.Atoi(out[i])
			b, _ := strconv.Atoi(out[j])
			return a < b
		}
		return pi && !pj
	})
	return out
}

// tokenSet is a canonical, order-insensitive key for a set of placeholders.
func tokenSet(tokens []string) []string {
	out := append([]string(nil), tokens...)
	sort.Strings(out)
	return out
}

// Substitute replaces every placeholder with its example value. Unknown tokens are left as-is.
func Substitute(text string, examples map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := placeholderPattern.FindStringSubmatch(m)
		if v, ok := examples[sub[1]]; ok && v != "" {
			return v
		}
		return m
	})
}
