package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextProcessor prepares message text for the content classifier, matching
// the preprocessing the classification model was trained with.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor.
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{logger: logger}
}

var (
	urlRe      = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	addrRe     = regexp.MustCompile(`\S+@\S+`)
	mailTagRe  = regexp.MustCompile(`(?i)\b(re|fwd|fw|forwarded|cc|to|from|subject)\b`)
	digitRe    = regexp.MustCompile(`\d+`)
	nonAlphaRe = regexp.MustCompile(`[^a-z\s]`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// PrepareForClassification lowercases, strips URLs, addresses, mail tags,
// digits and non-ASCII-letter characters, collapses whitespace and bounds
// the length. Diacritics are folded to their base letters first so accented
// text survives the ASCII filter.
func (tp *TextProcessor) PrepareForClassification(text string, maxChars int) string {
	t := tp.SanitizeUTF8(text)
	t = foldDiacritics(t)
	t = strings.ToLower(t)
	t = urlRe.ReplaceAllString(t, " ")
	t = addrRe.ReplaceAllString(t, " ")
	t = mailTagRe.ReplaceAllString(t, " ")
	t = digitRe.ReplaceAllString(t, " ")
	t = nonAlphaRe.ReplaceAllString(t, " ")
	t = spaceRe.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)

	return tp.TruncateText(t, maxChars)
}

// foldDiacritics decomposes to NFKD and drops combining marks.
func foldDiacritics(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// TruncateText safely truncates text to the specified maximum size and
// ensures the result is valid UTF-8.
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)))

	return truncated
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters.
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}
	return string(result)
}
