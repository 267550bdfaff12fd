package lexicon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Source answers whether a word exists in a language. An error means the
// answer is unknown.
type Source interface {
	Exists(ctx context.Context, word, lang string) (bool, error)
}

// WiktionarySource queries the MediaWiki opensearch API of each language
// edition of Wiktionary.
type WiktionarySource struct {
	urlTemplate string
	httpClient  *http.Client
}

// NewWiktionarySource takes an endpoint template in which "{lang}" is
// replaced by the language code, e.g. https://{lang}.wiktionary.org/w/api.php.
func NewWiktionarySource(urlTemplate string, timeout time.Duration) *WiktionarySource {
	return &WiktionarySource{
		urlTemplate: urlTemplate,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *WiktionarySource) endpoint(word, lang string) string {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("namespace", "0")
	params.Set("search", word)
	params.Set("limit", "2")
	params.Set("format", "json")
	params.Set("profile", "strict")
	return strings.ReplaceAll(s.urlTemplate, "{lang}", lang) + "?" + params.Encode()
}

// Exists reports true when the best match equals the word ignoring case and
// false when there is no match.
func (s *WiktionarySource) Exists(ctx context.Context, word, lang string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(word, lang), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return false, fmt.Errorf("wiktionary %s returned status %d", lang, resp.StatusCode)
	}

	// [search, [titles...], [descriptions...], [urls...]]
	var data []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return false, fmt.Errorf("decode opensearch response: %w", err)
	}
	if len(data) < 2 {
		return false, fmt.Errorf("malformed opensearch response with %d elements", len(data))
	}
	var titles []string
	if err := json.Unmarshal(data[1], &titles); err != nil {
		return false, fmt.Errorf("decode opensearch titles: %w", err)
	}
	if len(titles) == 0 {
		return false, nil
	}
	return strings.EqualFold(titles[0], word), nil
}
