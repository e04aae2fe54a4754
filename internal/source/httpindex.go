package source

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/alvmarrod/tree-exporter/internal/tree"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// HTTPIndex exports a tree of web server auto-index pages. A listing entry
// whose link ends in "/" is a container; any other entry is a leaf. Ids are
// absolute URLs.
type HTTPIndex struct {
	root      *url.URL
	filter    *Filter
	collector *colly.Collector
}

// NewHTTPIndex creates a source rooted at the listing page rootURL
func NewHTTPIndex(rootURL string, timeout time.Duration, filter *Filter) (*HTTPIndex, error) {
	root, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}
	if root.Scheme != "http" && root.Scheme != "https" {
		return nil, fmt.Errorf("root URL must be http or https, got %q", root.Scheme)
	}
	if !strings.HasSuffix(root.Path, "/") {
		root.Path += "/"
	}
	root.RawQuery = ""
	root.Fragment = ""

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(0), // Depth is tracked by the exporter queue
	)
	collector.SetRequestTimeout(timeout)

	return &HTTPIndex{root: root, filter: filter, collector: collector}, nil
}

// RootID is the id of the root container
func (s *HTTPIndex) RootID() string {
	return s.root.String()
}

// Resolve implements tree.Source by fetching and parsing the listing page
func (s *HTTPIndex) Resolve(ctx context.Context, id string) (*tree.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(id, s.root.String()) {
		return nil, &tree.ResolutionError{ID: id, Err: fmt.Errorf("outside of root %s", s.root)}
	}

	c := &tree.Container{
		ID:   id,
		Name: entryName(id),
		Link: id,
	}
	seen := make(map[string]bool)

	collector := s.collectorFor(ctx)
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		// Column sort links of auto-index pages
		if href == "" || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
			return
		}

		link := e.Request.AbsoluteURL(href)
		if link == "" || seen[link] {
			return
		}
		// Parent links and anything outside this listing
		if link == id || !strings.HasPrefix(link, id) {
			return
		}
		name := entryName(link)
		if name == "" || s.filter.IsExcluded(name) {
			return
		}
		seen[link] = true

		if strings.HasSuffix(link, "/") {
			c.Subcontainers = append(c.Subcontainers, tree.Ref{ID: link, Name: name})
			return
		}
		c.Leaves = append(c.Leaves, tree.Leaf{
			ID:       link,
			Name:     name,
			MimeType: mimeOf(name),
			Link:     link,
		})
	})

	logrus.Debugf("Fetching listing %s", id)
	if err := collector.Visit(id); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &tree.ResolutionError{ID: id, Err: err}
	}
	return c, nil
}

// Subparts implements tree.Source by downloading an xlsx workbook and
// reading its sheet names
func (s *HTTPIndex) Subparts(ctx context.Context, leaf tree.Leaf) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body []byte
	collector := s.collectorFor(ctx)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	if err := collector.Visit(leaf.Link); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &tree.ResolutionError{ID: leaf.ID, Err: err}
	}

	names, err := sheetNamesFromBytes(body)
	if err != nil {
		return nil, &tree.ResolutionError{ID: leaf.ID, Err: err}
	}
	return names, nil
}

// collectorFor clones the base collector with requests bound to ctx
func (s *HTTPIndex) collectorFor(ctx context.Context) *colly.Collector {
	collector := s.collector.Clone()
	collector.Context = ctx
	return collector
}

// entryName is the unescaped last path segment of a listing URL
func entryName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return u.Host
	}
	return path.Base(p)
}
