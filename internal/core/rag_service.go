package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
	"github.com/appdotbuilder/byteser-ai-chat/internal/utils"
)

const (
	DefaultMaxSources   = 3   // Number of documents to cite per reply
	DefaultMinRelevance = 0.7 // Minimum relevance score to consider a document relevant
	snippetLength       = 200
)

// Embedder turns text into a vector comparable with the stored corpus embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type DocumentLoader interface {
	ListResearchDocuments(ctx context.Context) ([]store.ResearchDocument, error)
}

// CorpusResearchProvider cites documents from the ingested research corpus,
// ranked by embedding similarity to the query.
type CorpusResearchProvider struct {
	loader       DocumentLoader
	embedder     Embedder
	maxSources   int
	minRelevance float64

	mu   sync.RWMutex
	docs []store.ResearchDocument // in-memory cache of the corpus and its embeddings
}

func NewCorpusResearchProvider(ctx context.Context, loader DocumentLoader, embedder Embedder, maxSources int, minRelevance float64) (*CorpusResearchProvider, error) {
	if maxSources <= 0 {
		maxSources = DefaultMaxSources
	}
	p := &CorpusResearchProvider{
		loader:       loader,
		embedder:     embedder,
		maxSources:   maxSources,
		minRelevance: minRelevance,
	}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload refreshes the cached corpus, e.g. after an ingest.
func (p *CorpusResearchProvider) Reload(ctx context.Context) error {
	docs, err := p.loader.ListResearchDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load research corpus: %w", err)
	}
	if len(docs) == 0 {
		slog.Warn("research corpus is empty; ingest documents to enable cited sources")
	} else {
		slog.Info("research corpus loaded", "documents", len(docs))
	}

	p.mu.Lock()
	p.docs = docs
	p.mu.Unlock()
	return nil
}

type scoredDocument struct {
	doc       store.ResearchDocument
	relevance float64
}

func (p *CorpusResearchProvider) FetchSources(ctx context.Context, query string) ([]store.Source, error) {
	p.mu.RLock()
	docs := p.docs
	p.mu.RUnlock()

	if len(docs) == 0 {
		return []store.Source{}, nil
	}

	queryEmbedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}

	scored := make([]scoredDocument, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			slog.Debug("skipping research document without embedding", "document_id", doc.ID)
			continue
		}
		similarity, err := utils.CosineSimilarity(queryEmbedding, doc.Embedding)
		if err != nil {
			slog.Warn("skipping research document", "document_id", doc.ID, "error", err)
			continue
		}
		relevance := utils.Relevance(similarity)
		if relevance >= p.minRelevance {
			scored = append(scored, scoredDocument{doc: doc, relevance: relevance})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].relevance > scored[j].relevance
	})
	if len(scored) > p.maxSources {
		scored = scored[:p.maxSources]
	}

	sources := make([]store.Source, 0, len(scored))
	for _, sd := range scored {
		relevance := sd.relevance
		sources = append(sources, store.Source{
			Title:     sd.doc.Title,
			URL:       sd.doc.URL,
			Snippet:   truncateRunes(sd.doc.Content, snippetLength),
			Relevance: &relevance,
		})
	}

	slog.Debug("retrieved research sources", "count", len(sources), "threshold", p.minRelevance)
	return sources, nil
}
