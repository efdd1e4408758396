package azdo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// ErrSignInPage is returned when Azure DevOps answers with HTML instead of JSON, which is how it
// reports rejected or missing credentials on many servers.
var ErrSignInPage = errors.New("azure devops returned an html page (likely a sign-in page)")

// StatusError is a non-success response from Azure DevOps.
type StatusError struct {
	StatusCode int
	Message    string
	TypeKey    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("azure devops returned %d", e.StatusCode)
	if e.TypeKey != "" {
		msg += " " + e.TypeKey
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func checkResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		return azerrors.QueryExecution(fmt.Sprintf("redirected to %q", loc), ErrSignInPage)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/html") || looksLikeHTML(body) {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if title := htmlTitle(body); title != "" {
			msg += fmt.Sprintf(", page title %q", title)
		}
		return azerrors.QueryExecution(msg, ErrSignInPage)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
			TypeKey string `json:"typeKey"`
		}
		if json.Unmarshal(body, &payload) == nil {
			se.Message = payload.Message
			se.TypeKey = payload.TypeKey
		}
		return azerrors.QueryExecution(statusHint(resp.StatusCode), se)
	}
	return nil
}

func statusHint(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized: check the token or credentials and the auth type"
	case http.StatusForbidden:
		return "forbidden: the identity lacks permission to read work items in this project"
	case http.StatusNotFound:
		return "not found: check the organization URL, collection and project"
	case http.StatusBadRequest:
		return "bad request: the WIQL query was rejected"
	case http.StatusTooManyRequests:
		return "rate limited: retry later"
	default:
		return "query failed"
	}
}

func looksLikeHTML(b []byte) bool {
	s := bytes.ToLower(bytes.TrimSpace(b))
	return bytes.HasPrefix(s, []byte("<!doctype html")) || bytes.HasPrefix(s, []byte("<html"))
}

// htmlTitle returns the text of the first <title> element, if any.
func htmlTitle(b []byte) string {
	doc, err := xhtml.Parse(bytes.NewReader(b))
	if err != nil {
		return ""
	}
	var find func(n *xhtml.Node) string
	find = func(n *xhtml.Node) string {
		if n.Type == xhtml.ElementNode && n.DataAtom == atom.Title {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == xhtml.TextNode {
					sb.WriteString(c.Data)
				}
			}
			return strings.Join(strings.Fields(sb.String()), " ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(doc)
}
