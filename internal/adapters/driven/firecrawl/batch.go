package firecrawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BatchFetcher = (*BatchFetcher)(nil)

// DefaultExtractPrompt asks the extraction model for catalogue-style metadata.
const DefaultExtractPrompt = "Extract structured metadata from this web page. " +
	"The summary must describe what information the page contains, like a card " +
	"catalog entry, so a reader can decide whether to load the full page. " +
	"Mention the topics covered, questions answered and data available. " +
	"Do not repeat the page content."

// DefaultExtractSchema is the JSON schema for the extracted metadata.
var DefaultExtractSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title": map[string]any{
			"type":        "string",
			"description": "The page title without the site name suffix",
		},
		"description": map[string]any{
			"type":        "string",
			"description": "A concise 1-2 sentence description of the page",
		},
		"summary": map[string]any{
			"type":        "string",
			"description": "A 3-5 sentence manifest of what the page contains",
		},
	},
	"required": []string{"title", "description", "summary"},
}

// DefaultExcludeTags strips page chrome before conversion to markdown.
var DefaultExcludeTags = []string{
	"nav", "aside", "header", "footer", "sidebar", "menu",
	"navigation", "filter", "widget", "widget-area", "sidebar-widget",
}

// ScrapeOptions is the per-page extraction configuration sent with each batch.
type ScrapeOptions struct {
	ExtractPrompt string
	ExtractSchema map[string]any
	ExcludeTags   []string
}

// DefaultScrapeOptions returns markdown plus JSON metadata extraction.
func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{
		ExtractPrompt: DefaultExtractPrompt,
		ExtractSchema: DefaultExtractSchema,
		ExcludeTags:   DefaultExcludeTags,
	}
}

// BatchFetcher drives the v2 batch scrape endpoints.
type BatchFetcher struct {
	client *Client
	opts   ScrapeOptions
}

// NewBatchFetcher creates a BatchFetcher.
func NewBatchFetcher(client *Client, opts ScrapeOptions) *BatchFetcher {
	return &BatchFetcher{client: client, opts: opts}
}

type jsonFormat struct {
	Type   string         `json:"type"`
	Prompt string         `json:"prompt,omitempty"`
	Schema map[string]any `json:"schema,omitempty"`
}

type batchRequest struct {
	URLs               []string `json:"urls"`
	Formats            []any    `json:"formats"`
	OnlyMainContent    bool     `json:"onlyMainContent"`
	ExcludeTags        []string `json:"excludeTags,omitempty"`
	RemoveBase64Images bool     `json:"removeBase64Images"`
	BlockAds           bool     `json:"blockAds"`
}

// Submit starts a batch scrape and returns its job ID.
func (f *BatchFetcher) Submit(ctx context.Context, resources []string) (string, error) {
	formats := []any{"markdown"}
	if f.opts.ExtractPrompt != "" || f.opts.ExtractSchema != nil {
		formats = append(formats, jsonFormat{Type: "json", Prompt: f.opts.ExtractPrompt, Schema: f.opts.ExtractSchema})
	}

	data, err := f.client.doJSON(ctx, "batch_submit", http.MethodPost, "/v2/batch/scrape", batchRequest{
		URLs:               resources,
		Formats:            formats,
		OnlyMainContent:    true,
		ExcludeTags:        f.opts.ExcludeTags,
		RemoveBase64Images: true,
		BlockAds:           true,
	})
	if err != nil {
		return "", err
	}
	if err := checkSuccess("batch_submit", data); err != nil {
		return "", err
	}

	id := gjson.GetBytes(data, "id").String()
	if id == "" {
		return "", &domain.RemoteError{Op: "batch_submit", StatusCode: http.StatusOK, Message: fmt.Sprintf("id: %v", errMissingField)}
	}
	return id, nil
}

// Status polls GET /v2/batch/scrape/{id}.
func (f *BatchFetcher) Status(ctx context.Context, jobID string) (*domain.BatchStatus, error) {
	data, err := f.client.doJSON(ctx, "batch_status", http.MethodGet, "/v2/batch/scrape/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess("batch_status", data); err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(data)
	return &domain.BatchStatus{
		Status:      domain.RemoteJobStatus(doc.Get("status").String()),
		Completed:   int(doc.Get("completed").Int()),
		Total:       int(doc.Get("total").Int()),
		CreditsUsed: int(doc.Get("creditsUsed").Int()),
		Results:     f.results(doc.Get("data")),
		Next:        doc.Get("next").String(),
	}, nil
}

// FetchPage follows an absolute next URL.
func (f *BatchFetcher) FetchPage(ctx context.Context, cursor string) (*domain.BatchPage, error) {
	data, err := f.client.doJSON(ctx, "batch_page", http.MethodGet, cursor, nil)
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(data)
	return &domain.BatchPage{
		Results: f.results(doc.Get("data")),
		Next:    doc.Get("next").String(),
	}, nil
}

// results keeps each page document verbatim and keys it by the URL that was
// requested. Pages with no recognisable URL are dropped.
func (f *BatchFetcher) results(pages gjson.Result) []domain.FetchedResource {
	var out []domain.FetchedResource
	pages.ForEach(func(_, page gjson.Result) bool {
		id := ResourceID(page)
		if id == "" {
			f.client.logger.Warn("dropping scraped page without a source url")
			return true
		}
		out = append(out, domain.FetchedResource{ID: id, Document: json.RawMessage(page.Raw)})
		return true
	})
	return out
}

// ResourceID reads the page URL from its metadata: sourceURL, then url,
// then ogUrl.
func ResourceID(page gjson.Result) string {
	for _, path := range []string{"metadata.sourceURL", "metadata.url", "metadata.ogUrl"} {
		if v := page.Get(path).String(); v != "" {
			return v
		}
	}
	return ""
}
