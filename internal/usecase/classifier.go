package usecase

import (
	"context"
	"fmt"
	"strings"

	"IssueTriage/internal/domain"
	"IssueTriage/internal/ports"
)

const postTemplate = `Title: %s
Number: %d
Content: %s
`

// DecodeError reports a model answer that is not a JSON object.
type DecodeError struct {
	Num int
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode classification for #%d: %v", e.Num, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Summary is shown to the operator when the answer has to be typed in by hand.
func (e *DecodeError) Summary() string {
	raw := e.Raw
	if r := []rune(raw); len(r) > 400 {
		raw = string(r[:400]) + "..."
	}
	return fmt.Sprintf("message: %v\nanswer: %s", e.Err, raw)
}

// Classifier turns a post into a classification record with one model call.
type Classifier struct {
	completer    ports.Completer
	systemPrompt string
}

// NewClassifier pairs a (rate-limited) completer with the system instruction.
func NewClassifier(completer ports.Completer, systemPrompt string) *Classifier {
	return &Classifier{completer: completer, systemPrompt: systemPrompt}
}

// Classify asks the model about post and parses the answer. Malformed answers
// fail with *DecodeError and are not retried.
func (c *Classifier) Classify(ctx context.Context, post domain.Post) (domain.Record, error) {
	if c.completer == nil {
		return nil, fmt.Errorf("completion client is not configured")
	}

	answer, err := c.completer.Complete(ctx, c.systemPrompt, RenderPost(post))
	if err != nil {
		return nil, fmt.Errorf("classify #%d: %w", post.Num, err)
	}

	record, err := domain.DecodeRecord([]byte(stripFence(answer)))
	if err != nil {
		return nil, &DecodeError{Num: post.Num, Raw: answer, Err: err}
	}
	return record, nil
}

// RenderPost formats the user message for a post.
func RenderPost(post domain.Post) string {
	return fmt.Sprintf(postTemplate, post.Title, post.Num, post.Text)
}

// stripFence removes a surrounding ```json fence that chat models like to add.
func stripFence(answer string) string {
	s := strings.TrimSpace(answer)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(s)
}
