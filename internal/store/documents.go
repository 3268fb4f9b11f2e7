package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// ReplaceResearchDocuments swaps the whole retrieval corpus for docs in one transaction.
func (s *Store) ReplaceResearchDocuments(ctx context.Context, docs []ResearchDocument) (int, error) {
	count := 0
	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx, `DELETE FROM research_documents`); err != nil {
			return fmt.Errorf("failed to clear research documents: %w", err)
		}
		for i := range docs {
			embeddingBytes, err := json.Marshal(docs[i].Embedding)
			if err != nil {
				return fmt.Errorf("failed to marshal embedding: %w", err)
			}
			docs[i].EmbeddingJSON = string(embeddingBytes)

			_, err = tx.exec(ctx,
				`INSERT INTO research_documents (title, url, content, embedding_json) VALUES (?, ?, ?, ?)`,
				docs[i].Title, docs[i].URL, docs[i].Content, docs[i].EmbeddingJSON)
			if err != nil {
				return fmt.Errorf("failed to insert research document: %w", err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListResearchDocuments loads the corpus with decoded embeddings. Rows whose
// embedding cannot be decoded are returned with a nil embedding.
func (s *Store) ListResearchDocuments(ctx context.Context) ([]ResearchDocument, error) {
	docs := []ResearchDocument{}
	if err := s.selectAll(ctx, &docs,
		`SELECT id, title, url, content, embedding_json FROM research_documents ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query research documents: %w", err)
	}

	for i := range docs {
		if docs[i].EmbeddingJSON == "" {
			continue
		}
		if err := json.Unmarshal([]byte(docs[i].EmbeddingJSON), &docs[i].Embedding); err != nil {
			slog.Warn("failed to unmarshal document embedding", "document_id", docs[i].ID, "error", err)
			docs[i].Embedding = nil
		}
	}
	return docs, nil
}
