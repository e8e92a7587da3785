package tool

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CurrentTimeInput defines input for the current_time tool.
type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA timezone name such as Europe/Prague. Defaults to UTC."`
}

// NewCurrentTime creates the current_time tool.
func NewCurrentTime() (Tool, error) {
	return New(
		"current_time",
		"Get the current date and time, optionally in a specific timezone.",
		func(ctx context.Context, input CurrentTimeInput) (string, error) {
			loc := time.UTC
			if input.Timezone != "" {
				var err error
				loc, err = time.LoadLocation(input.Timezone)
				if err != nil {
					return "", fmt.Errorf("unknown timezone %q", input.Timezone)
				}
			}
			return time.Now().In(loc).Format("Monday, 2 January 2006 15:04:05 MST"), nil
		},
	)
}

// LoreEntry is one archived piece of world lore returned by a search.
type LoreEntry struct {
	Title   string
	Content string
}

// LoreSearcher is the archive search behavior the lore_lookup tool needs.
type LoreSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]LoreEntry, error)
}

// LoreLookupInput defines input for the lore_lookup tool.
type LoreLookupInput struct {
	Query string `json:"query" jsonschema:"What to look up in the world archive."`
	TopK  int    `json:"topK,omitempty" jsonschema:"Maximum entries to return (1-10, default 3)."`
}

// NewLoreLookup creates the lore_lookup tool backed by searcher.
func NewLoreLookup(searcher LoreSearcher) (Tool, error) {
	return New(
		"lore_lookup",
		"Search the author's world archive for established lore: characters, factions, locations, events.",
		func(ctx context.Context, input LoreLookupInput) (string, error) {
			if strings.TrimSpace(input.Query) == "" {
				return "", fmt.Errorf("query must not be empty")
			}
			topK := input.TopK
			if topK < 1 || topK > 10 {
				topK = 3
			}

			entries, err := searcher.Search(ctx, input.Query, topK)
			if err != nil {
				return "", fmt.Errorf("archive search: %w", err)
			}
			if len(entries) == 0 {
				return "No archive entries match this query.", nil
			}

			var b strings.Builder
			for i, e := range entries {
				if i > 0 {
					b.WriteString("\n\n")
				}
				fmt.Fprintf(&b, "## %s\n%s", e.Title, e.Content)
			}
			return b.String(), nil
		},
	)
}
