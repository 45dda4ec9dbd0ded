package tokens

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TiktokenCounter counts with BPE encodings. Gemini models have no public
// tokenizer, so they are approximated with o200k_base, which tracks their
// vocabulary size closely enough for budgeting.
type TiktokenCounter struct {
	matcher *ModelMatcher

	cacheMu    sync.RWMutex
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	fallback   *Estimator
}

// NewTiktokenCounter creates a counter for Gemini and GPT model names.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		matcher:    NewModelMatcher([]string{"gemini-", "gemma-", "gpt-", "o1", "o3", "o4"}, nil),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
		fallback:   NewEstimator(),
	}
}

func (c *TiktokenCounter) SupportsModel(model string) bool {
	return c.matcher.Matches(model)
}

func (c *TiktokenCounter) CountText(model, text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.codec(modelToEncoding(model))
	if err != nil {
		slog.Warn("tokenizer unavailable, estimating", slog.String("model", model), slog.String("error", err.Error()))
		return c.fallback.CountText(model, text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return c.fallback.CountText(model, text)
	}
	return len(ids)
}

func (c *TiktokenCounter) codec(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	c.cacheMu.RLock()
	cached, ok := c.codecCache[enc]
	c.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.codecCache[enc] = codec
	c.cacheMu.Unlock()
	return codec, nil
}

func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
