package retrieval

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// maxPageBytes bounds how much of a homepage is read.
const maxPageBytes = 2 << 20

// StatusError is returned when a fetched page answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("retrieval: GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// LocalSource fetches the company homepage and extracts its visible text.
type LocalSource struct {
	http      *http.Client
	userAgent string
}

// NewLocalSource creates a homepage fetcher.
func NewLocalSource(timeout time.Duration, userAgent string) *LocalSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LocalSource{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Name implements Source.
func (s *LocalSource) Name() string { return "local" }

// Fetch implements Source.
func (s *LocalSource) Fetch(ctx context.Context, t Target) (string, error) {
	target := t.Website
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrapf(err, "retrieval: build request for %s", target)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := decodeBody(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}

	text, err := ExtractText(body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", nil
	}
	return Format([]Result{{URL: resp.Request.URL.String(), Content: text}}), nil
}

// decodeBody converts the body to UTF-8 using the charset named in the
// Content-Type header. Unknown charsets are read as-is.
func decodeBody(r io.Reader, contentType string) (io.Reader, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return r, nil
	}
	return enc.NewDecoder().Reader(r), nil
}

// ExtractText returns the visible text of an HTML document with scripts,
// styles and navigation chrome removed and whitespace collapsed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", eris.Wrap(err, "retrieval: parse html")
	}

	doc.Find("script, style, noscript, iframe, svg, nav").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		parts = append(parts, strings.TrimSpace(desc))
	}
	parts = append(parts, doc.Find("body").Text())

	// mailto and tel links often carry contact details the text omits.
	doc.Find(`a[href^="mailto:"], a[href^="tel:"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		parts = append(parts, href)
	})

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}
