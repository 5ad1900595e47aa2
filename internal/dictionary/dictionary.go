// Package dictionary provides optional word-definition enrichment for win
// announcements. Failures are expected and degrade to an empty result.
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const apiURL = "https://api.dictionaryapi.dev/api/v2/entries/en/%s"

// Lookup resolves a short definition for a word.
type Lookup interface {
	Define(ctx context.Context, word string) (string, error)
}

// HTTPLookup queries the free dictionaryapi.dev endpoint.
type HTTPLookup struct {
	client *http.Client
}

// NewHTTPLookup creates a lookup with a bounded request timeout so a slow
// dictionary can never hold up settlement.
func NewHTTPLookup() *HTTPLookup {
	return &HTTPLookup{client: &http.Client{Timeout: 5 * time.Second}}
}

type entry struct {
	Meanings []struct {
		Definitions []struct {
			Definition string `json:"definition"`
		} `json:"definitions"`
	} `json:"meanings"`
}

// Define returns the first definition found for word, or an error when the
// word is unknown or the service is unavailable. Callers treat errors as
// "no definition".
func (l *HTTPLookup) Define(ctx context.Context, word string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(apiURL, word), nil)
	if err != nil {
		return "", err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dictionary lookup returned %d", resp.StatusCode)
	}

	var entries []entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return "", err
	}
	for _, e := range entries {
		for _, m := range e.Meanings {
			for _, d := range m.Definitions {
				if d.Definition != "" {
					return d.Definition, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no definition for %q", word)
}
