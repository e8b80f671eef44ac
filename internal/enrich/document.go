// internal/enrich/document.go
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/commentflow/internal/types"
)

const maxDocumentChars = 50000

// DocumentProvider retrieves knowledge-base context for answering
// questions. Configured source pages are fetched over HTTP, converted from
// HTML to markdown, and cached per URL for the configured TTL so reruns of
// the same enrichment task are idempotent.
type DocumentProvider struct {
	sources []string
	client  *http.Client
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cachedDoc
}

type cachedDoc struct {
	content   string
	fetchedAt time.Time
}

// NewDocumentProvider creates a provider over the given source URLs.
func NewDocumentProvider(sources []string, ttl time.Duration) *DocumentProvider {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DocumentProvider{
		sources: sources,
		client:  &http.Client{Timeout: 30 * time.Second},
		ttl:     ttl,
		cache:   make(map[string]cachedDoc),
	}
}

// RetrieveContext returns the combined markdown of all sources. The query
// is currently unused for filtering; sources are small curated pages.
func (p *DocumentProvider) RetrieveContext(ctx context.Context, query string) (string, error) {
	if len(p.sources) == 0 {
		return "", nil
	}

	var parts []string
	for _, url := range p.sources {
		content, err := p.fetch(ctx, url)
		if err != nil {
			return "", err
		}
		parts = append(parts, content)
	}

	combined := strings.Join(parts, "\n\n---\n\n")
	if len(combined) > maxDocumentChars {
		combined = combined[:maxDocumentChars] + "\n\n[Content truncated]"
	}
	return combined, nil
}

func (p *DocumentProvider) fetch(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	if doc, ok := p.cache[url]; ok && time.Since(doc.fetchedAt) < p.ttl {
		p.mu.Unlock()
		return doc.content, nil
	}
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Commentflow/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &types.TransientError{Op: "fetch document", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("HTTP error: status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", &types.TransientError{Op: "fetch document", Err: statusErr}
		}
		return "", &types.PermanentError{Op: "fetch document", Err: statusErr}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &types.TransientError{Op: "read document", Err: err}
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", &types.PermanentError{Op: "convert document", Err: err}
	}

	p.mu.Lock()
	p.cache[url] = cachedDoc{content: md, fetchedAt: time.Now()}
	p.mu.Unlock()

	return md, nil
}
