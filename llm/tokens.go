package llm

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts prompt tokens for budget checks before a request is sent.
type Tokenizer interface {
	CountTokens(text string) (int, error)
	CountMessages(messages []Message) (int, error)
}

// modelEncodings maps OpenAI-family model names to their tiktoken encoding.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// TiktokenTokenizer counts tokens with tiktoken for OpenAI-family models.
// Encoding data is loaded lazily on first use.
type TiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewTiktokenTokenizer creates a tokenizer for the given model, matching by
// exact name first and model-name prefix second. Unknown models fall back to
// cl100k_base.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, enc := range modelEncodings {
			if strings.HasPrefix(model, prefix) {
				encoding, ok = enc, true
				break
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}
	return &TiktokenTokenizer{encoding: encoding}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	total := 0
	for _, msg := range messages {
		n, err := t.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		// ~4 tokens of per-message overhead (role markers, separators).
		total += n + 4
	}
	return total + 3, nil
}

// EstimatorTokenizer is a character-ratio estimator used when tiktoken data
// is unavailable (e.g. offline environments).
type EstimatorTokenizer struct{}

func (EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	n := utf8.RuneCountInString(text) / 4
	if n == 0 {
		n = 1
	}
	return n, nil
}

func (e EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := 0
	for _, msg := range messages {
		n, _ := e.CountTokens(msg.Content)
		total += n + 4
	}
	return total + 3, nil
}

// CountPromptTokens counts tokens for messages with the given tokenizer,
// falling back to the estimator when the tokenizer fails.
func CountPromptTokens(tok Tokenizer, messages []Message) int {
	if tok != nil {
		if n, err := tok.CountMessages(messages); err == nil {
			return n
		}
	}
	n, _ := EstimatorTokenizer{}.CountMessages(messages)
	return n
}
