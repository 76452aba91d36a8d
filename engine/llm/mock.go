package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// EchoLLM is an offline model that answers with the last fenced block of the
// prompt, fenced again. With the default prompt it returns each chunk
// unchanged, which makes whole-pipeline dry runs possible without a
// provider.
type EchoLLM struct{}

func (EchoLLM) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, message := range messages {
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: echo(prompt.String())}},
	}, nil
}

func (m EchoLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func echo(prompt string) string {
	body := prompt
	if end := strings.LastIndex(prompt, "\n```"); end >= 0 {
		if start := strings.LastIndex(prompt[:end], "```"); start >= 0 {
			body = prompt[start:end]
			if nl := strings.Index(body, "\n"); nl >= 0 {
				body = body[nl+1:]
			} else {
				body = ""
			}
		}
	}
	return "```latex\n" + body + "\n```"
}
