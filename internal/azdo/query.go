package azdo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// ItemRef identifies one work item returned by a query.
type ItemRef struct {
	ID  int    `json:"id"`
	URL string `json:"url,omitempty"`
}

// QueryResult is the normalized result of a work item query. Count is always len(Items).
type QueryResult struct {
	Items []ItemRef `json:"items"`
	Count int       `json:"count"`
}

func newQueryResult(items []ItemRef) QueryResult {
	if items == nil {
		items = []ItemRef{}
	}
	return QueryResult{Items: items, Count: len(items)}
}

const wiqlResultSchema = `{
  "type": "object",
  "properties": {
    "workItems": {
      "type": ["array", "null"],
      "items": {"$ref": "#/$defs/ref"}
    },
    "workItemRelations": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "source": {"oneOf": [{"type": "null"}, {"$ref": "#/$defs/ref"}]},
          "target": {"oneOf": [{"type": "null"}, {"$ref": "#/$defs/ref"}]}
        }
      }
    }
  },
  "$defs": {
    "ref": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "integer"},
        "url": {"type": "string"}
      }
    }
  }
}`

var wiqlSchema = jsonschema.MustCompileString("wiql-result.json", wiqlResultSchema)

type wiqlResult struct {
	QueryType         string     `json:"queryType"`
	WorkItems         []ItemRef  `json:"workItems"`
	WorkItemRelations []relation `json:"workItemRelations"`
}

type relation struct {
	Source *ItemRef `json:"source"`
	Target *ItemRef `json:"target"`
	Rel    string   `json:"rel"`
}

// ListItems runs a WIQL query scoped to the connection's project.
func (c *Connection) ListItems(ctx context.Context, query string) (QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return QueryResult{}, azerrors.QueryExecution("empty WIQL query", nil)
	}
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return QueryResult{}, azerrors.QueryExecution("encode WIQL query", err)
	}
	return c.runQuery(ctx, http.MethodPost, "/_apis/wit/wiql", body)
}

// ListItemsBySavedQuery runs the saved query with the given id (a GUID) in the connection's project.
func (c *Connection) ListItemsBySavedQuery(ctx context.Context, queryID string) (QueryResult, error) {
	queryID = strings.TrimSpace(queryID)
	if queryID == "" {
		return QueryResult{}, azerrors.QueryExecution("empty saved query id", nil)
	}
	return c.runQuery(ctx, http.MethodGet, "/_apis/wit/wiql/"+url.PathEscape(queryID), nil)
}

func (c *Connection) runQuery(ctx context.Context, method, apiPath string, body []byte) (QueryResult, error) {
	version, err := c.queryAPIVersion(ctx)
	if err != nil {
		return QueryResult{}, err
	}
	_, b, err := c.do(ctx, method, c.projectURL(apiPath, version), body)
	if err != nil {
		return QueryResult{}, err
	}
	res, err := decodeWIQL(b)
	if err != nil {
		return QueryResult{}, err
	}
	c.logger.Debugw("work item query finished", "project", c.project, "count", res.Count)
	return res, nil
}

func decodeWIQL(b []byte) (QueryResult, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return QueryResult{}, azerrors.QueryExecution("decode WIQL response", err)
	}
	if err := wiqlSchema.Validate(doc); err != nil {
		return QueryResult{}, azerrors.QueryExecution("unexpected WIQL response", schemaError(err))
	}

	var raw wiqlResult
	if err := json.Unmarshal(b, &raw); err != nil {
		return QueryResult{}, azerrors.QueryExecution("decode WIQL response", err)
	}
	if len(raw.WorkItems) > 0 || len(raw.WorkItemRelations) == 0 {
		return newQueryResult(raw.WorkItems), nil
	}

	// Link queries list relations; each linked work item is reported once, in first-seen order.
	seen := map[int]bool{}
	var items []ItemRef
	for _, rel := range raw.WorkItemRelations {
		if rel.Target == nil || seen[rel.Target.ID] {
			continue
		}
		seen[rel.Target.ID] = true
		items = append(items, *rel.Target)
	}
	return newQueryResult(items), nil
}

func schemaError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Errorf("at %s: %s", loc, leaf.Message)
}
