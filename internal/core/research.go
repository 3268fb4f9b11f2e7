package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

// ResearchProvider finds citations relevant to a user query.
type ResearchProvider interface {
	FetchSources(ctx context.Context, query string) ([]store.Source, error)
}

type GenerationRequest struct {
	History []store.Message // previous turns, oldest first
	Message string
	Sources []store.Source // nil when research is disabled
}

// ResponseGenerator writes the assistant reply for one turn.
type ResponseGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// TitleGenerator proposes a short conversation title from its first message.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}

// StaticResearchProvider returns canned search-engine citations for a query.
// It stands in when no research backend is configured.
type StaticResearchProvider struct{}

func (StaticResearchProvider) FetchSources(_ context.Context, query string) ([]store.Source, error) {
	q := url.QueryEscape(strings.TrimSpace(query))
	topic := truncateRunes(strings.TrimSpace(query), 60)
	score := func(v float64) *float64 { return &v }

	return []store.Source{
		{
			Title:     fmt.Sprintf("Overview: %s", topic),
			URL:       "https://en.wikipedia.org/w/index.php?search=" + q,
			Snippet:   fmt.Sprintf("Encyclopedic background and key facts related to %q.", topic),
			Relevance: score(0.92),
		},
		{
			Title:     fmt.Sprintf("Scholarly articles on %s", topic),
			URL:       "https://scholar.google.com/scholar?q=" + q,
			Snippet:   "Peer-reviewed papers and citations covering the topic in depth.",
			Relevance: score(0.85),
		},
		{
			Title:     fmt.Sprintf("Recent coverage of %s", topic),
			URL:       "https://news.google.com/search?q=" + q,
			Snippet:   "Latest news articles and reporting on the subject.",
			Relevance: score(0.78),
		},
	}, nil
}

// TemplateResponder produces a fixed-shape reply that cites each source by index.
type TemplateResponder struct{}

func (TemplateResponder) Generate(_ context.Context, req GenerationRequest) (string, error) {
	var b strings.Builder
	if len(req.Sources) == 0 {
		fmt.Fprintf(&b, "Thanks for your question about %q. ", truncateRunes(req.Message, 120))
		if req.Sources == nil {
			b.WriteString("I answered from general knowledge; enable research to get a reply backed by cited sources.")
		} else {
			b.WriteString("I could not find any relevant sources, so this answer is based on general knowledge.")
		}
		return b.String(), nil
	}

	fmt.Fprintf(&b, "Based on my research into %q, here is what I found:\n\n", truncateRunes(req.Message, 120))
	for i, src := range req.Sources {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, src.Title, src.Snippet)
	}
	b.WriteString("\nLet me know if you would like me to dig deeper into any of these sources.")
	return b.String(), nil
}

// truncateRunes shortens s to at most n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return strings.TrimSpace(string(runes[:n-3])) + "..."
}
