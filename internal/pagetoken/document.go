// Package pagetoken reads the values a server-rendered page embeds for its
// live connection: the CSRF meta token and the main live view's session.
package pagetoken

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxPageBytes = 4 << 20

var (
	ErrElementMissing   = errors.New("page element not found")
	ErrAttributeMissing = errors.New("page element attribute not found")
)

type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "page request failed"
	}
	if e.Status != "" {
		return "page request failed: " + e.Status
	}
	return fmt.Sprintf("page request failed: http status %d", e.StatusCode)
}

// MainView describes the element marked data-phx-main.
type MainView struct {
	ID      string
	Session string
	Static  string
}

type Document struct {
	root *html.Node
}

func Fetch(ctx context.Context, client *http.Client, pageURL string) (*Document, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return Parse(io.LimitReader(resp.Body, maxPageBytes))
}

func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{root: root}, nil
}

// MetaContent returns the content attribute of the first
// <meta name="name"> element. The name value must match exactly.
func (d *Document) MetaContent(name string) (string, error) {
	node := d.find(func(n *html.Node) bool {
		return n.DataAtom == atom.Meta && attr(n, "name") == name
	})
	if node == nil {
		return "", fmt.Errorf("meta[name=%q]: %w", name, ErrElementMissing)
	}
	content, ok := lookupAttr(node, "content")
	if !ok {
		return "", fmt.Errorf("meta[name=%q] content: %w", name, ErrAttributeMissing)
	}
	return content, nil
}

func (d *Document) MainView() (MainView, bool) {
	node := d.find(func(n *html.Node) bool {
		_, ok := lookupAttr(n, "data-phx-main")
		return ok
	})
	if node == nil {
		return MainView{}, false
	}
	return MainView{
		ID:      attr(node, "id"),
		Session: attr(node, "data-phx-session"),
		Static:  attr(node, "data-phx-static"),
	}, true
}

func (d *Document) find(match func(*html.Node) bool) *html.Node {
	if d == nil || d.root == nil {
		return nil
	}
	var walk func(*html.Node) *html.Node
	walk = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(d.root)
}

func attr(n *html.Node, key string) string {
	value, _ := lookupAttr(n, key)
	return value
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
