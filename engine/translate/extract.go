package translate

import (
	"strings"

	"github.com/texlate/texlate/engine/core"
)

const fence = "```"

// block is one fenced region of a response.
type block struct {
	info string
	body string
}

// scanBlocks finds fenced blocks. A fence is a line whose trimmed content
// starts with three backticks; the opening line may carry an info string.
// An opening fence without a closing one is reported through the bool.
func scanBlocks(response string) ([]block, bool) {
	lines := strings.SplitAfter(response, "\n")
	var (
		blocks []block
		open   bool
		cur    block
		body   strings.Builder
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, fence) {
			if open {
				body.WriteString(line)
			}
			continue
		}
		if !open {
			open = true
			cur = block{info: strings.TrimSpace(strings.TrimPrefix(trimmed, fence))}
			body.Reset()
			continue
		}
		if trimmed != fence {
			// a fence with an info string cannot close a block
			body.WriteString(line)
			continue
		}
		cur.body = strings.TrimSuffix(body.String(), "\n")
		blocks = append(blocks, cur)
		open = false
	}
	return blocks, open
}

// ExtractFenced returns the body of the single fenced block in response.
// Zero blocks, several blocks or an unterminated fence fail with
// MalformedResponse.
func ExtractFenced(response string) (string, error) {
	blocks, unterminated := scanBlocks(response)
	if unterminated {
		return "", malformed(len(blocks), "response has an unterminated fenced block")
	}
	switch len(blocks) {
	case 1:
		return blocks[0].body, nil
	case 0:
		return "", malformed(0, "response has no fenced block")
	default:
		return "", malformed(len(blocks), "response has more than one fenced block")
	}
}

func malformed(n int, msg string) error {
	return &core.Error{
		Code:    core.MalformedResponse,
		Message: msg,
		Details: map[string]any{"blocks": n},
	}
}
