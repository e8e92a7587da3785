package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/content"
	"github.com/loreweaver/loreweaver/internal/memory"
	"github.com/loreweaver/loreweaver/internal/tool"
)

const summaryPrompt = `Summarize the following conversation in a short paragraph.
Preserve names, places, and decisions; drop greetings and small talk.
Reply with the summary only.`

// modelSummarizer condenses transcripts through the chat model.
// Satisfies session.Summarizer.
type modelSummarizer struct {
	model chat.Model
}

func (s *modelSummarizer) Summarize(ctx context.Context, conversation string) (string, error) {
	msgs := []chat.Message{
		chat.NewSystemMessage(summaryPrompt),
		chat.NewUserMessage(conversation),
	}

	reply, err := s.model.Invoke(ctx, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}
	return strings.TrimSpace(content.ToText(reply.Content)), nil
}

// loreSearcher exposes archived session summaries to the lore_lookup tool.
// Satisfies tool.LoreSearcher.
type loreSearcher struct {
	memory *memory.Store
}

func (l *loreSearcher) Search(ctx context.Context, query string, limit int) ([]tool.LoreEntry, error) {
	summaries, err := l.memory.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search archive: %w", err)
	}

	entries := make([]tool.LoreEntry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, tool.LoreEntry{
			Title:   "Archived conversation from " + s.CreatedAt.Format("2 January 2006"),
			Content: s.Text,
		})
	}
	return entries, nil
}
