package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loreweaver/loreweaver/internal/log"
)

// allowAllValidator lets tests fetch from httptest loopback servers.
type allowAllValidator struct{ denied bool }

func (v *allowAllValidator) ValidateURL(url string) error {
	if v.denied {
		return context.DeadlineExceeded
	}
	return nil
}
func (v *allowAllValidator) Client() *http.Client   { return &http.Client{} }
func (v *allowAllValidator) MaxResponseSize() int64 { return 1 << 20 }

func TestFetchReferenceExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Veldt</title></head><body>
			<article><h1>Veldt</h1>
			<p>Veldt is a river city ruled by the Ashen Court. Its docks handle most lowland trade,
			and its archives predate the founding of the court itself by two centuries.</p>
			<p>The city walls were rebuilt after the flood of the third age, when the river Aln
			changed course and swallowed the old quarter whole.</p></article>
			<script>alert("noise")</script></body></html>`))
	}))
	defer srv.Close()

	tl, err := NewFetchReference(&allowAllValidator{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewFetchReference: %v", err)
	}

	got, err := tl.Call(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(got, "Ashen Court") {
		t.Errorf("extracted text missing article content: %q", got)
	}
	if strings.Contains(got, "alert(") {
		t.Errorf("script content leaked into extraction: %q", got)
	}
}

func TestFetchReferenceRejectedURL(t *testing.T) {
	tl, err := NewFetchReference(&allowAllValidator{denied: true}, log.NewNop())
	if err != nil {
		t.Fatalf("NewFetchReference: %v", err)
	}
	if _, err := tl.Call(context.Background(), map[string]any{"url": "http://169.254.169.254/"}); err == nil {
		t.Error("rejected URL did not error")
	}
}

func TestFetchReferenceNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tl, err := NewFetchReference(&allowAllValidator{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewFetchReference: %v", err)
	}
	if _, err := tl.Call(context.Background(), map[string]any{"url": srv.URL}); err == nil {
		t.Error("404 response did not error")
	}
}

func TestFetchReferenceTruncates(t *testing.T) {
	long := strings.Repeat("lore and more lore. ", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><article><p>" + long + "</p></article></body></html>"))
	}))
	defer srv.Close()

	tl, err := NewFetchReference(&allowAllValidator{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewFetchReference: %v", err)
	}

	got, err := tl.Call(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(got) > maxReferenceChars+100 {
		t.Errorf("len = %d, want truncated near %d", len(got), maxReferenceChars)
	}
	if !strings.HasSuffix(got, "[truncated]") {
		t.Error("truncated output missing marker")
	}
}
