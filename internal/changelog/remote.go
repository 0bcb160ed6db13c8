package changelog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultURLs are the published changelog locations, tried in order.
var DefaultURLs = []string{
	"https://etfsave.life/changelog.json",
	"https://www.etfsave.life/changelog.json",
}

const userAgent = "etfsave-changelog-sync/1.0"

// CandidateURLs merges explicit URLs, the environment override and the defaults,
// dropping blanks and duplicates while keeping first-seen order.
func CandidateURLs(explicit []string, envURL string) []string {
	all := make([]string, 0, len(explicit)+1+len(DefaultURLs))
	all = append(all, explicit...)
	all = append(all, envURL)
	all = append(all, DefaultURLs...)

	seen := map[string]struct{}{}
	out := []string{}
	for _, u := range all {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Fetcher downloads a published changelog.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// Fetch downloads url. Only a 200 response holding a JSON array is accepted.
func (f Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
	}
	return Decode(resp.Body)
}

// FetchFirst tries urls in order and returns the first successful download with the
// URL it came from.
func (f Fetcher) FetchFirst(ctx context.Context, urls []string) ([]Entry, string, error) {
	if len(urls) == 0 {
		return nil, "", errors.New("no candidate URL configured")
	}
	var errs []error
	for _, u := range urls {
		entries, err := f.Fetch(ctx, u)
		if err == nil {
			return entries, u, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", u, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, "", errors.Join(errs...)
}
