// Package tvdb resolves IMDb cross-reference ids through TheTVDB when the
// primary catalog does not link one.
package tvdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"
)

const providerName = "tvdb"

// TVDBClient captures the dashotv client methods used here.
type TVDBClient interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error)
}

// CrossRef implements metadata.CrossReference.
type CrossRef struct {
	client TVDBClient
}

// Login authenticates against TheTVDB and returns a CrossRef.
func Login(apiKey string) (*CrossRef, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}
	client, err := tvdbapi.Login(apiKey)
	if err != nil {
		return nil, mapError(err)
	}
	return &CrossRef{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client TVDBClient) *CrossRef {
	return &CrossRef{client: client}
}

// ImdbID searches series by name (and year when known) and returns the
// IMDb remote id of the first series hit.
func (c *CrossRef) ImdbID(ctx context.Context, name string, year int) (string, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return "", &provider.ProviderError{Provider: providerName, Code: provider.CodeInvalidRequest, Message: "cross reference requires a title"}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := operations.GetSearchResultsRequest{Query: &query}
	typeSeries := "series"
	req.Type = &typeSeries
	if year > 0 {
		yf := float64(year)
		req.Year = &yf
	}

	resp, err := c.client.GetSearchResults(req)
	if err != nil {
		return "", mapError(err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return "", notFound("no tvdb series matches %q", name)
	}

	var id int64
	for _, candidate := range resp.Data {
		if !strings.EqualFold(deref(candidate.Type), "series") {
			continue
		}
		if id = recordID(candidate); id != 0 {
			break
		}
	}
	if id == 0 {
		return "", notFound("no tvdb series matches %q", name)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	extended, err := c.client.GetSeriesExtended(float64(id), nil, nil)
	if err != nil {
		return "", mapError(err)
	}
	if extended == nil || extended.Data == nil {
		return "", notFound("tvdb series %d not found", id)
	}

	imdbID := findRemoteID(extended.Data.RemoteIds, "imdb")
	if imdbID == "" {
		return "", notFound("tvdb series %d has no imdb id", id)
	}
	return imdbID, nil
}

func recordID(result shared.SearchResult) int64 {
	for _, raw := range []string{deref(result.TvdbID), strings.TrimPrefix(deref(result.ID), "series-")} {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 0
}

// findRemoteID returns the id whose source name mentions source.
func findRemoteID(ids []shared.RemoteID, source string) string {
	for _, remote := range ids {
		if strings.Contains(strings.ToLower(deref(remote.SourceName)), source) {
			return deref(remote.ID)
		}
	}
	return ""
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func notFound(format string, args ...interface{}) error {
	return &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// The dashotv client reports HTTP failures only through error text.
var errorMarkers = []struct {
	markers    []string
	code       string
	retryAfter int
}{
	{[]string{"401", "unauthorized", "apikey"}, provider.CodeAuthFailed, 0},
	{[]string{"429", "too many"}, provider.CodeRateLimited, 5},
	{[]string{"404", "not found"}, provider.CodeNotFound, 0},
	{[]string{"503", "unavailable"}, provider.CodeUnavailable, 30},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, m := range errorMarkers {
		for _, marker := range m.markers {
			if strings.Contains(lower, marker) {
				return &provider.ProviderError{Provider: providerName, Code: m.code, Message: msg, Retry: m.retryAfter > 0, RetryAfter: m.retryAfter}
			}
		}
	}
	return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnknown, Message: msg}
}
