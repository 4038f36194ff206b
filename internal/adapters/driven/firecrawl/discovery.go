package firecrawl

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Discoverer = (*Discoverer)(nil)

// Discoverer lists a site's URLs with the map endpoint.
type Discoverer struct {
	client *Client
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(client *Client) *Discoverer {
	return &Discoverer{client: client}
}

type mapRequest struct {
	URL                   string `json:"url"`
	IncludeSubdomains     bool   `json:"includeSubdomains"`
	IgnoreQueryParameters bool   `json:"ignoreQueryParameters"`
	Limit                 int    `json:"limit,omitempty"`
	IgnoreCache           bool   `json:"ignoreCache"`
}

// Discover calls POST /v1/map. Links may be plain strings or objects with
// a url field; both are accepted.
func (d *Discoverer) Discover(ctx context.Context, req driven.DiscoveryRequest) ([]string, error) {
	data, err := d.client.doJSON(ctx, "map", http.MethodPost, "/v1/map", mapRequest{
		URL:                   req.Root,
		IncludeSubdomains:     false,
		IgnoreQueryParameters: true,
		Limit:                 req.Limit,
		IgnoreCache:           req.BypassCache,
	})
	if err != nil {
		return nil, err
	}
	if err := checkSuccess("map", data); err != nil {
		return nil, err
	}

	links := gjson.GetBytes(data, "links")
	if !links.IsArray() {
		return nil, &domain.RemoteError{Op: "map", StatusCode: http.StatusOK, Message: fmt.Sprintf("links: %v", errMissingField)}
	}

	out := make([]string, 0, len(links.Array()))
	links.ForEach(func(_, link gjson.Result) bool {
		id := link.String()
		if link.IsObject() {
			id = link.Get("url").String()
		}
		if id != "" {
			out = append(out, id)
		}
		return true
	})
	return out, nil
}
