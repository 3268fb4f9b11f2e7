package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/appdotbuilder/byteser-ai-chat/internal/store"
	"github.com/appdotbuilder/byteser-ai-chat/internal/utils"
)

var ErrResearchBackend = errors.New("research backend request failed")

const researchRequestTimeout = 30 * time.Second

// HTTPResearchProvider queries an external search API for citations.
type HTTPResearchProvider struct {
	client     *resty.Client
	maxSources int
}

func NewHTTPResearchProvider(baseURL, apiKey string, maxSources int) *HTTPResearchProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	if maxSources <= 0 {
		maxSources = DefaultMaxSources
	}
	return &HTTPResearchProvider{client: client, maxSources: maxSources}
}

type researchSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type researchSearchResponse struct {
	Results []struct {
		Title   string   `json:"title"`
		URL     string   `json:"url"`
		Snippet string   `json:"snippet"`
		Score   *float64 `json:"score"`
	} `json:"results"`
}

func (p *HTTPResearchProvider) FetchSources(ctx context.Context, query string) ([]store.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, researchRequestTimeout)
	defer cancel()

	res, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(researchSearchRequest{Query: query, Limit: p.maxSources}).
		Post("/search")
	if err != nil {
		slog.Error("unable to reach research backend", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrResearchBackend, err)
	}

	if !res.IsSuccess() {
		slog.Error("research backend returned error", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("%w: status %d", ErrResearchBackend, res.StatusCode())
	}

	var body researchSearchResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", ErrResearchBackend, err)
	}

	sources := make([]store.Source, 0, len(body.Results))
	for _, r := range body.Results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		src := store.Source{Title: r.Title, URL: r.URL, Snippet: truncateRunes(r.Snippet, snippetLength)}
		if r.Score != nil {
			score := utils.Relevance(*r.Score)
			src.Relevance = &score
		}
		sources = append(sources, src)
		if len(sources) == p.maxSources {
			break
		}
	}
	return sources, nil
}
