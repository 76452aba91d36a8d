package document

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/pkg/logger"
)

// TokenCounter measures text in the units of the generation backend.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// CounterFunc adapts a function to TokenCounter.
type CounterFunc func(ctx context.Context, text string) (int, error)

func (f CounterFunc) CountTokens(ctx context.Context, text string) (int, error) {
	return f(ctx, text)
}

// ChunkKind tells the translator whether a chunk may be sent to the backend.
type ChunkKind int

const (
	Translatable ChunkKind = iota
	Protected
)

func (k ChunkKind) String() string {
	if k == Protected {
		return "protected"
	}
	return "translatable"
}

// Chunk is a contiguous run of units sent to the backend as one request.
type Chunk struct {
	Index     int
	Kind      ChunkKind
	Text      string
	Tokens    int
	Oversized bool
}

var ErrInvalidBudget = errors.New("token budget must be positive")

// Segment splits body into chunks of at most budget tokens. Units are packed
// greedily in order; a unit larger than budget on its own is emitted as a
// single chunk flagged Oversized. Concatenating the chunk texts yields body.
func Segment(ctx context.Context, body string, budget int, counter TokenCounter) ([]Chunk, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBudget, budget)
	}
	if counter == nil {
		return nil, errors.New("token counter is required")
	}
	log := logger.FromContext(ctx)
	var chunks []Chunk
	emit := func(kind ChunkKind, text string, tokens int, oversized bool) {
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Kind:      kind,
			Text:      text,
			Tokens:    tokens,
			Oversized: oversized,
		})
	}
	var units []string
	Parse(body).Walk(func(leaf *Region) {
		if leaf.Text == "" {
			return
		}
		if leaf.Kind == RegionPreamble {
			emit(Protected, leaf.Text, 0, false)
			return
		}
		units = append(units, leaf.Text)
	})

	var running strings.Builder
	runningTokens := 0
	flush := func() {
		if running.Len() == 0 {
			return
		}
		emit(Translatable, running.String(), runningTokens, false)
		running.Reset()
		runningTokens = 0
	}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unitTokens, err := counter.CountTokens(ctx, unit)
		if err != nil {
			return nil, fmt.Errorf("counting unit tokens: %w", err)
		}
		if unitTokens > budget {
			flush()
			log.Warn("unit exceeds token budget",
				"kind", core.OversizedUnit,
				"tokens", unitTokens,
				"budget", budget,
				"head", head(unit, 60),
			)
			emit(Translatable, unit, unitTokens, true)
			continue
		}
		if running.Len() == 0 {
			running.WriteString(unit)
			runningTokens = unitTokens
			continue
		}
		combined, err := counter.CountTokens(ctx, running.String()+unit)
		if err != nil {
			return nil, fmt.Errorf("counting chunk tokens: %w", err)
		}
		if combined > budget {
			flush()
			running.WriteString(unit)
			runningTokens = unitTokens
			continue
		}
		running.WriteString(unit)
		runningTokens = combined
	}
	flush()
	return chunks, nil
}

// Reassemble concatenates chunk texts in order.
func Reassemble(texts []string) string {
	return strings.Join(texts, "")
}

// Texts returns the text of every chunk in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// OversizedCount returns how many chunks hold a single over-budget unit.
func OversizedCount(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		if c.Oversized {
			n++
		}
	}
	return n
}

var documentClassLine = regexp.MustCompile(`\\documentclass.*?\{.*?\}.*?\n`)

// InsertAfterDocumentClass inserts text on the line following the first
// \documentclass declaration. It reports false when none is found.
func InsertAfterDocumentClass(contents, text string) (string, bool) {
	loc := documentClassLine.FindStringIndex(contents)
	if loc == nil {
		return contents, false
	}
	var b strings.Builder
	b.Grow(len(contents) + len(text) + 1)
	b.WriteString(contents[:loc[1]])
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(contents[loc[1]:])
	return b.String(), true
}

func head(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
