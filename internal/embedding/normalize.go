package embedding

import (
	"log/slog"
	"unicode/utf8"

	"ctxembed/internal/metrics"
)

const truncateMsg = "truncating embedding input"

// MaxChars is the character budget for maxTokens: 3 chars per token (code
// tokenizes denser than prose) less a 10% margin, i.e. floor(maxTokens*2.7).
func MaxChars(maxTokens int) int {
	if maxTokens <= 0 {
		return 0
	}
	return maxTokens * 27 / 10
}

// Normalizer prepares text for submission to a token-limited model.
// Truncation is character based and approximate; no tokenizer is involved.
type Normalizer struct {
	MaxTokens int
	Logger    *slog.Logger
}

// Preprocess replaces empty input with a single space and truncates text
// longer than MaxChars(MaxTokens) code points. It never fails.
func (n Normalizer) Preprocess(text string) string {
	if text == "" {
		return " "
	}

	maxChars := MaxChars(n.MaxTokens)
	if maxChars <= 0 {
		return text
	}
	length := utf8.RuneCountInString(text)
	if length <= maxChars {
		return text
	}

	// Cut on a rune boundary.
	end, count := 0, 0
	for i := range text {
		if count == maxChars {
			end = i
			break
		}
		count++
	}

	n.logger().Warn(truncateMsg,
		"original_length", length,
		"new_length", maxChars,
		"max_tokens", n.MaxTokens,
	)
	metrics.TruncationsTotal.Inc()
	return text[:end]
}

// PreprocessBatch applies Preprocess to each text, preserving order.
func (n Normalizer) PreprocessBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = n.Preprocess(t)
	}
	return out
}

func (n Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
