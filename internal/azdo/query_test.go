package azdo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

func TestDecodeWIQLLinkQuery(t *testing.T) {
	body := `{
	  "queryType": "oneHop",
	  "workItemRelations": [
	    {"rel": null, "source": null, "target": {"id": 1, "url": "u1"}},
	    {"rel": "System.LinkTypes.Hierarchy-Forward", "source": {"id": 1}, "target": {"id": 2, "url": "u2"}},
	    {"rel": "System.LinkTypes.Related", "source": {"id": 3}, "target": {"id": 2, "url": "u2"}},
	    {"rel": "System.LinkTypes.Related", "source": {"id": 3}, "target": null}
	  ]
	}`
	res, err := decodeWIQL([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, []ItemRef{{ID: 1, URL: "u1"}, {ID: 2, URL: "u2"}}, res.Items)
	assert.Equal(t, 2, res.Count)
}

func TestDecodeWIQLEmpty(t *testing.T) {
	for _, body := range []string{`{}`, `{"workItems":null}`, `{"workItems":[],"workItemRelations":[]}`} {
		res, err := decodeWIQL([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, []ItemRef{}, res.Items)
		assert.Equal(t, 0, res.Count)
	}
}

func TestDecodeWIQLSchemaErrorNamesLocation(t *testing.T) {
	_, err := decodeWIQL([]byte(`{"workItems":[{"id":1},{"id":"two"}]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, azerrors.ErrQueryExecution))
	assert.Contains(t, err.Error(), "/workItems/1")
}

func TestHTMLTitle(t *testing.T) {
	assert.Equal(t, "Sign In", htmlTitle([]byte("<html><head><title> Sign   In </title></head></html>")))
	assert.Empty(t, htmlTitle([]byte("<html><body>no title</body></html>")))
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{StatusCode: 400, TypeKey: "WiqlParseException", Message: "TF51005: field does not exist"}
	assert.Equal(t, "azure devops returned 400 WiqlParseException: TF51005: field does not exist", err.Error())
}

func TestDecodeWIQLIntegerIDs(t *testing.T) {
	res, err := decodeWIQL([]byte(`{"workItems":[{"id":2147483647,"url":"u"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []ItemRef{{ID: 2147483647, URL: "u"}}, res.Items)

	_, err = decodeWIQL([]byte(`{"workItems":[{"id":1.5}]}`))
	assert.True(t, errors.Is(err, azerrors.ErrQueryExecution))

	_, err = decodeWIQL([]byte(`not json`))
	assert.True(t, errors.Is(err, azerrors.ErrQueryExecution))
}
