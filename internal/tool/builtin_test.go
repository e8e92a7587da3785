package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubSearcher struct {
	entries []LoreEntry
	err     error
	gotTopK int
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]LoreEntry, error) {
	s.gotTopK = limit
	return s.entries, s.err
}

func TestCurrentTime(t *testing.T) {
	tl, err := NewCurrentTime()
	if err != nil {
		t.Fatalf("NewCurrentTime: %v", err)
	}

	got, err := tl.Call(context.Background(), map[string]any{"timezone": "UTC"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(got, "UTC") {
		t.Errorf("got %q, want formatted time with zone", got)
	}

	if _, err := tl.Call(context.Background(), map[string]any{"timezone": "Nowhere/Land"}); err == nil {
		t.Error("unknown timezone did not error")
	}
}

func TestLoreLookup(t *testing.T) {
	searcher := &stubSearcher{entries: []LoreEntry{
		{Title: "The Ashen Court", Content: "Ruling council of Veldt."},
		{Title: "River Aln", Content: "Trade artery of the lowlands."},
	}}
	tl, err := NewLoreLookup(searcher)
	if err != nil {
		t.Fatalf("NewLoreLookup: %v", err)
	}

	got, err := tl.Call(context.Background(), map[string]any{"query": "Veldt"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(got, "## The Ashen Court") || !strings.Contains(got, "River Aln") {
		t.Errorf("got %q", got)
	}
	if searcher.gotTopK != 3 {
		t.Errorf("default topK = %d, want 3", searcher.gotTopK)
	}
}

func TestLoreLookupEmptyQuery(t *testing.T) {
	tl, err := NewLoreLookup(&stubSearcher{})
	if err != nil {
		t.Fatalf("NewLoreLookup: %v", err)
	}
	if _, err := tl.Call(context.Background(), map[string]any{"query": "  "}); err == nil {
		t.Error("empty query did not error")
	}
}

func TestLoreLookupNoMatches(t *testing.T) {
	tl, err := NewLoreLookup(&stubSearcher{})
	if err != nil {
		t.Fatalf("NewLoreLookup: %v", err)
	}
	got, err := tl.Call(context.Background(), map[string]any{"query": "unknown"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(got, "No archive entries") {
		t.Errorf("got %q", got)
	}
}

func TestLoreLookupSearchError(t *testing.T) {
	tl, err := NewLoreLookup(&stubSearcher{err: errors.New("index offline")})
	if err != nil {
		t.Fatalf("NewLoreLookup: %v", err)
	}
	if _, err := tl.Call(context.Background(), map[string]any{"query": "x"}); err == nil {
		t.Error("search failure did not propagate")
	}
}
