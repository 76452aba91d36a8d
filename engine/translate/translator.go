package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/texlate/texlate/engine/document"
	"github.com/texlate/texlate/pkg/logger"
)

// Generator sends one chunk to the text-generation backend and returns its
// raw response.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, text string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// ProgressFunc is told about each chunk after it has been translated.
type ProgressFunc func(done, total int, chunk document.Chunk)

// TranslateChunk translates a single chunk. Protected chunks are returned
// verbatim without contacting the backend.
func TranslateChunk(ctx context.Context, chunk document.Chunk, backend Generator) (string, error) {
	if chunk.Kind == document.Protected {
		return chunk.Text, nil
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return chunk.Text, nil
	}
	response, err := backend.Generate(ctx, chunk.Text)
	if err != nil {
		return "", fmt.Errorf("generating chunk %d: %w", chunk.Index, err)
	}
	out, err := ExtractFenced(response)
	if err != nil {
		return "", fmt.Errorf("chunk %d: %w", chunk.Index, err)
	}
	return restoreTrailingNewline(chunk.Text, out), nil
}

// TranslateAll translates chunks in order and returns the reassembled text.
// The first failing chunk aborts the run.
func TranslateAll(
	ctx context.Context,
	chunks []document.Chunk,
	backend Generator,
	progress ProgressFunc,
) (string, error) {
	log := logger.FromContext(ctx)
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := TranslateChunk(ctx, chunk, backend)
		if err != nil {
			return "", err
		}
		out[i] = text
		log.Debug("chunk translated", "index", chunk.Index, "kind", chunk.Kind, "tokens", chunk.Tokens)
		if progress != nil {
			progress(i+1, len(chunks), chunk)
		}
	}
	return document.Reassemble(out), nil
}

// restoreTrailingNewline keeps chunk seams on separate lines when the
// backend trims the final newline of a fragment.
func restoreTrailingNewline(original, translated string) string {
	if strings.HasSuffix(original, "\n") && !strings.HasSuffix(translated, "\n") {
		return translated + "\n"
	}
	return translated
}
