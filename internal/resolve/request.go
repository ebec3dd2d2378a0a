package resolve

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
)

// Request identifies one episode and the source to play it from.
type Request struct {
	SeriesID int          `json:"seriesId"`
	Season   int          `json:"season"`
	Episode  int          `json:"episode"`
	Provider provider.Tag `json:"provider"`
	NativeID string       `json:"nativeId,omitempty"`
}

// ParseRequest builds a request from route values. Missing or non-numeric
// ordinals are RequestInvalid.
func ParseRequest(seriesID, season, episode, tag, nativeID string) (Request, error) {
	var req Request
	var err error

	if req.SeriesID, err = parseOrdinal("series id", seriesID); err != nil {
		return Request{}, err
	}
	if req.Season, err = parseOrdinal("season", season); err != nil {
		return Request{}, err
	}
	if req.Episode, err = parseOrdinal("episode", episode); err != nil {
		return Request{}, err
	}
	req.Provider = provider.Tag(strings.TrimSpace(tag))
	req.NativeID = strings.TrimSpace(nativeID)

	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func parseOrdinal(field, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, newNotFound(KindRequestInvalid, field+" is required")
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, newNotFound(KindRequestInvalid, fmt.Sprintf("%s must be a number, got %q", field, value))
	}
	if n <= 0 {
		return 0, newNotFound(KindRequestInvalid, fmt.Sprintf("%s must be positive, got %d", field, n))
	}
	return n, nil
}

// Validate reports RequestInvalid before ProviderDataMissing, so a request
// missing both is RequestInvalid.
func (r Request) Validate() error {
	switch {
	case r.SeriesID <= 0:
		return newNotFound(KindRequestInvalid, "series id is required")
	case r.Season <= 0:
		return newNotFound(KindRequestInvalid, "season is required")
	case r.Episode <= 0:
		return newNotFound(KindRequestInvalid, "episode is required")
	case r.Provider == "":
		return newNotFound(KindRequestInvalid, "provider is required")
	}
	if r.Provider.RequiresNativeID() && r.NativeID == "" {
		return newNotFound(KindProviderDataMissing, fmt.Sprintf("provider %s needs an id", r.Provider))
	}
	return nil
}

// Next is the following episode from the same source.
func (r Request) Next() Request {
	next := r
	next.Episode++
	return next
}

// Route renders the request as a page path.
func (r Request) Route() string {
	path := fmt.Sprintf("/tv-shows/%d/season/%d/episode/%d", r.SeriesID, r.Season, r.Episode)
	query := url.Values{}
	if r.Provider != "" {
		query.Set("provider", string(r.Provider))
	}
	if r.NativeID != "" {
		query.Set("id", r.NativeID)
	}
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

func (r Request) String() string {
	return fmt.Sprintf("%d S%02dE%02d via %s", r.SeriesID, r.Season, r.Episode, r.Provider)
}

// Caller carries who asked and in which language.
type Caller struct {
	Locale string
	UserID string
	Route  string
}
