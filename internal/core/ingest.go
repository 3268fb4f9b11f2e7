package core

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
)

// EmbeddingRateLimit keeps ingestion under the embedding API quota (1500/min).
const EmbeddingRateLimit = rate.Limit(25)

type DocumentWriter interface {
	ReplaceResearchDocuments(ctx context.Context, docs []store.ResearchDocument) (int, error)
}

// CorpusEntry is one row of a "| title | url | text |" markdown table.
type CorpusEntry struct {
	Title string
	URL   string
	Text  string
}

// ParseCorpus reads a markdown table with title, url and text columns. The
// header and separator rows are skipped, as are rows with an empty text cell.
func ParseCorpus(r io.Reader) ([]CorpusEntry, error) {
	var entries []CorpusEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			slog.Debug("skipping line not matching table row format", "line", lineNo)
			continue
		}

		cells := strings.Split(strings.Trim(line, "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if isSeparatorRow(cells) || isHeaderRow(cells) {
			continue
		}
		if len(cells) < 3 {
			slog.Warn("skipping malformed table row", "line", lineNo, "cells", len(cells))
			continue
		}

		entry := CorpusEntry{
			Title: cells[0],
			URL:   cells[1],
			Text:  strings.TrimSpace(strings.Join(cells[2:], " | ")),
		}
		if entry.Text == "" {
			slog.Warn("skipping row with empty text", "line", lineNo)
			continue
		}
		if entry.Title == "" {
			entry.Title = truncateRunes(entry.Text, 60)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return entries, nil
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func isHeaderRow(cells []string) bool {
	if len(cells) < 3 {
		return false
	}
	return strings.EqualFold(cells[0], "title") &&
		strings.EqualFold(cells[1], "url") &&
		(strings.EqualFold(cells[2], "text") || strings.EqualFold(cells[2], "content"))
}

// IngestResearchCorpus embeds every corpus entry and replaces the stored
// corpus with the result. Entries whose embedding fails are skipped. limiter
// may be nil to embed without pacing.
func IngestResearchCorpus(ctx context.Context, r io.Reader, embedder Embedder, w DocumentWriter, limiter *rate.Limiter) (int, error) {
	entries, err := ParseCorpus(r)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		slog.Warn("no documents found in corpus, expected a markdown table with title, url and text columns")
		return 0, nil
	}

	slog.Info("embedding research corpus", "documents", len(entries))

	docs := make([]store.ResearchDocument, 0, len(entries))
	for i, entry := range entries {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return 0, fmt.Errorf("ingestion interrupted: %w", err)
			}
		}

		embedding, err := embedder.Embed(ctx, entry.Text)
		if err != nil {
			slog.Warn("failed to embed document, skipping", "index", i+1, "title", entry.Title, "error", err)
			continue
		}
		docs = append(docs, store.ResearchDocument{
			Title:     entry.Title,
			URL:       entry.URL,
			Content:   entry.Text,
			Embedding: embedding,
		})

		if (i+1)%50 == 0 {
			slog.Info("embedding progress", "done", i+1, "total", len(entries))
		}
	}

	count, err := w.ReplaceResearchDocuments(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to store research corpus: %w", err)
	}
	slog.Info("research corpus ingested", "documents", count)
	return count, nil
}
