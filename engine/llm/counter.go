package llm

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"
	"github.com/texlate/texlate/engine/document"
)

// defaultEncoding is used when neither the model nor the configured encoding
// is known to tiktoken.
const defaultEncoding = "cl100k_base"

// TiktokenCounter counts tokens with the tokenizer of the target model.
type TiktokenCounter struct {
	encodingName string
	tke          *tiktoken.Tiktoken
}

// NewTiktokenCounter resolves encoding first as an encoding name, then as a
// model name, and falls back to cl100k_base.
func NewTiktokenCounter(modelOrEncoding string) (*TiktokenCounter, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}
	if tke, err := tiktoken.GetEncoding(modelOrEncoding); err == nil {
		return &TiktokenCounter{encodingName: modelOrEncoding, tke: tke}, nil
	}
	if tke, err := tiktoken.EncodingForModel(modelOrEncoding); err == nil {
		return &TiktokenCounter{encodingName: modelOrEncoding, tke: tke}, nil
	}
	tke, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get default encoding '%s': %w", defaultEncoding, err)
	}
	return &TiktokenCounter{encodingName: defaultEncoding, tke: tke}, nil
}

func (tc *TiktokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	return len(tc.tke.Encode(text, nil, nil)), nil
}

// Encoding names the model or encoding the counter was resolved from.
func (tc *TiktokenCounter) Encoding() string {
	return tc.encodingName
}

// CachedCounter memoizes counts of recently seen texts. Segmentation asks
// for the count of a growing chunk many times, and re-running a document
// repeats every query.
type CachedCounter struct {
	inner document.TokenCounter
	cache *lru.Cache[string, int]
}

// NewCachedCounter wraps inner with an LRU of size entries. A non-positive
// size returns inner unchanged.
func NewCachedCounter(inner document.TokenCounter, size int) (document.TokenCounter, error) {
	if size <= 0 {
		return inner, nil
	}
	cache, err := lru.New[string, int](size)
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}
	return &CachedCounter{inner: inner, cache: cache}, nil
}

func (c *CachedCounter) CountTokens(ctx context.Context, text string) (int, error) {
	if n, ok := c.cache.Get(text); ok {
		return n, nil
	}
	n, err := c.inner.CountTokens(ctx, text)
	if err != nil {
		return 0, err
	}
	c.cache.Add(text, n)
	return n, nil
}
