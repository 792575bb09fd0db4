package hko

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// candidateKeywords mark URLs that plausibly serve observation data.
var candidateKeywords = []string{".json", "/wxinfo/", "dyn_dat", "one_json_uc", "rain", "isoh", "/json/"}

// referenceAttrs lists the selector/attribute pairs scanned for URLs.
var referenceAttrs = []struct {
	selector string
	attr     string
}{
	{"script[src]", "src"},
	{"a[href]", "href"},
	{"link[href]", "href"},
	{"[data-url]", "data-url"},
}

// IsCandidate reports whether rawURL looks like a data endpoint.
func IsCandidate(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, kw := range candidateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FilterCandidates keeps candidate URLs, dropping duplicates and preserving order.
func FilterCandidates(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || !IsCandidate(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// LoadCandidates reads a captured candidates file: one URL per line, lines not
// starting with "http" are ignored.
func LoadCandidates(path string) ([]string, error) {
	//nolint:gosec // G304: path comes from configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidates: %w", err)
	}
	defer func() { _ = f.Close() }()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "http") {
			urls = append(urls, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	return urls, nil
}

// Discover fetches pageURL and returns the candidate data URLs it references,
// resolved against the page.
func (c *Client) Discover(ctx context.Context, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	body, err := c.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	refs, err := ExtractReferences(body, base)
	if err != nil {
		return nil, err
	}

	found := FilterCandidates(refs)
	c.logger.Info("endpoint discovery", "page", pageURL, "references", len(refs), "candidates", len(found))
	return found, nil
}

// ExtractReferences parses an HTML document and returns every referenced URL,
// resolved against base, in document order per attribute kind.
func ExtractReferences(html []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var refs []string
	for _, ra := range referenceAttrs {
		doc.Find(ra.selector).Each(func(_ int, s *goquery.Selection) {
			v, ok := s.Attr(ra.attr)
			if !ok {
				return
			}
			v = strings.TrimSpace(v)
			if v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(strings.ToLower(v), "javascript:") {
				return
			}
			ref, err := url.Parse(v)
			if err != nil {
				return
			}
			if base != nil {
				ref = base.ResolveReference(ref)
			}
			refs = append(refs, ref.String())
		})
	}
	return refs, nil
}
