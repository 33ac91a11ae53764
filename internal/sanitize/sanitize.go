// Package sanitize strips dangerous markup constructs from untrusted
// text, HTML, and CSS before it re-enters the host. This is shallow
// structural sanitization, not a threat scanner: deep media and content
// analysis belongs to a separate service.
package sanitize

import "regexp"

var (
	scriptBlocks   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptTags     = regexp.MustCompile(`(?i)</?script\b[^>]*>`)
	iframeBlocks   = regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?</iframe\s*>`)
	iframeTags     = regexp.MustCompile(`(?i)</?iframe\b[^>]*>`)
	jsScheme       = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlers  = regexp.MustCompile(`(?i)\son\w+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	cssImports     = regexp.MustCompile(`(?i)@import\b[^;}]*;?`)
	cssExpressions = regexp.MustCompile(`(?i)expression\s*\([^)]*\)`)
)

// maxPasses bounds the fixed-point loop. Real content converges in one
// or two passes; anything still unstable after this many is hostile.
const maxPasses = 10

// Clean removes script blocks, inline frames, javascript: scheme
// references, inline event handlers, and CSS @import/expression()
// constructs from the input. Passes are applied until the output is
// stable, so Clean is idempotent and removal cannot be defeated by
// constructs that reassemble after a single pass. Worst case the result
// is an empty string; Clean never fails.
func Clean(input string) string {
	current := input
	for i := 0; i < maxPasses; i++ {
		next := cleanOnce(current)
		if next == current {
			return current
		}
		current = next
	}
	return ""
}

func cleanOnce(s string) string {
	s = scriptBlocks.ReplaceAllString(s, "")
	s = scriptTags.ReplaceAllString(s, "")
	s = iframeBlocks.ReplaceAllString(s, "")
	s = iframeTags.ReplaceAllString(s, "")
	s = jsScheme.ReplaceAllString(s, "")
	s = eventHandlers.ReplaceAllString(s, "")
	s = cssImports.ReplaceAllString(s, "")
	s = cssExpressions.ReplaceAllString(s, "")
	return s
}
