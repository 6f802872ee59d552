package catalog

import (
	"context"
	"errors"
	"net/http"

	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/interfaces"
)

// link is one hyperlink object in the provider's index documents.
type link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// indexPage is one page of the catalog index. SignificantLink carries the
// catalog items; RelatedLink carries navigation, including the "Next Page"
// link when more pages follow.
type indexPage struct {
	SignificantLink []link `json:"significantLink"`
	RelatedLink     []link `json:"relatedLink"`
}

// hasNextPage reports whether the provider advertises a following page.
func (p indexPage) hasNextPage() bool {
	for _, l := range p.RelatedLink {
		if l.Name == "Next Page" {
			return true
		}
	}
	return false
}

// fetcher issues authenticated GETs against the provider, acquiring bearer
// tokens from the shared source. A request rejected as unauthorized gets
// exactly one more attempt with a freshly exchanged token; unbounded token
// refresh loops would hide real credential problems.
type fetcher struct {
	tokens interfaces.TokenSource
	client *httpclient.Client
	apiKey string
}

func (f *fetcher) get(ctx context.Context, url string) ([]byte, error) {
	body, err := f.getOnce(ctx, url)
	if errors.Is(err, interfaces.ErrUnauthorized) {
		f.tokens.Invalidate()
		body, err = f.getOnce(ctx, url)
	}
	return body, err
}

func (f *fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	token, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token.Value)
	header.Set("apikey", f.apiKey)
	header.Set("Accept", "application/json")

	resp, err := f.client.Do(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
