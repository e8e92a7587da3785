package session

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/content"
	"github.com/loreweaver/loreweaver/internal/log"
)

const titlePrompt = `Generate a short title (at most six words) for a conversation that starts
with the following message. Reply with the title only, no quotes.`

// Titler derives a session title from the opening user message.
type Titler struct {
	model  chat.Model
	logger log.Logger
}

// NewTitler creates a titler over model.
func NewTitler(model chat.Model, logger log.Logger) (*Titler, error) {
	if model == nil {
		return nil, fmt.Errorf("titler: model is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Titler{model: model, logger: logger}, nil
}

// Title generates a title for a conversation opened by input. Results are
// trimmed and bounded by MaxTitleLength.
func (t *Titler) Title(ctx context.Context, input string) (string, error) {
	msgs := []chat.Message{
		chat.NewSystemMessage(titlePrompt),
		chat.NewUserMessage(input),
	}

	reply, err := t.model.Invoke(ctx, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}

	title := strings.TrimSpace(content.ToText(reply.Content))
	title = strings.Trim(title, `"'`)
	if title == "" {
		return "", fmt.Errorf("model produced empty title")
	}
	if len(title) > MaxTitleLength {
		title = truncateToRune(title, MaxTitleLength)
	}
	return title, nil
}

// truncateToRune cuts s to at most max bytes without splitting a rune.
func truncateToRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
