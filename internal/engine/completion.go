package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Completion mirrors the OpenAI text_completion object. The in-process engine
// builds one so that both engines return the same raw shape.
type Completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *CompletionUsage   `json:"usage,omitempty"`
}

type CompletionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason,omitempty"`
}

type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// newCompletion wraps a single generated text into a Completion.
func newCompletion(model, text, finishReason string) Completion {
	return Completion{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []CompletionChoice{{Text: text, Index: 0, FinishReason: finishReason}},
	}
}

// outputFromCompletion marshals c and pairs it with its first choice text.
func outputFromCompletion(c Completion) (Output, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return Output{}, fmt.Errorf("encode completion: %w", err)
	}
	return Output{Text: firstChoiceText(c), Raw: raw}, nil
}

// outputFromRaw decodes an engine response body. A body without choices
// yields empty text rather than an error.
func outputFromRaw(raw []byte) (Output, error) {
	var c Completion
	if err := json.Unmarshal(raw, &c); err != nil {
		return Output{}, fmt.Errorf("decode completion: %w", err)
	}
	return Output{Text: firstChoiceText(c), Raw: json.RawMessage(raw)}, nil
}

func firstChoiceText(c Completion) string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Text
}
