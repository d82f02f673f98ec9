package pipeline

import "strings"

// sentenceEnders is the set of sentence-boundary characters. Matching is
// purely character-based with no locale awareness; ';' and ':' are not
// boundaries.
var sentenceEnders = map[byte]bool{
	'.':  true,
	'!':  true,
	'?':  true,
	'\n': true,
}

// sentenceBuffer accumulates streamed agent text and peels off complete
// sentences at the rightmost boundary character, so partial tokens after
// the boundary wait for more context.
type sentenceBuffer struct {
	buf strings.Builder
}

// Add appends a token and returns the longest complete-sentence prefix
// found (possibly spanning prior Add calls), or "" if no boundary is found
// yet. The buffer retains only the remainder after the split.
func (s *sentenceBuffer) Add(token string) string {
	s.buf.WriteString(token)
	complete, remainder := splitAtRightmostBoundary(s.buf.String())
	if complete == "" {
		return ""
	}
	s.buf.Reset()
	s.buf.WriteString(remainder)
	return complete
}

// Flush returns and clears whatever remains in the buffer, trimmed.
func (s *sentenceBuffer) Flush() string {
	remainder := s.buf.String()
	s.buf.Reset()
	return remainder
}

// splitAtRightmostBoundary finds the rightmost sentence-ending character in
// text and returns (text[0..=i], text[i+1..]). If no boundary exists,
// returns ("", text).
func splitAtRightmostBoundary(text string) (complete, remainder string) {
	for i := len(text) - 1; i >= 0; i-- {
		if sentenceEnders[text[i]] {
			return text[:i+1], text[i+1:]
		}
	}
	return "", text
}
