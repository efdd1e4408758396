package azdo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/azdo-lens/internal/config"
)

const witLocations = `{
  "count": 2,
  "value": [
    {"id": "a02355f5-5f8a-4671-8e32-369d23aac83d", "area": "wit", "resourceName": "wiql", "minVersion": "1.0", "maxVersion": "5.1", "releasedVersion": "5.0"},
    {"id": "1a9c53f7-f243-4447-b110-35ef023636e4", "area": "wit", "resourceName": "wiql", "minVersion": "1.0", "maxVersion": "5.1", "releasedVersion": "5.0"}
  ]
}`

func selfHostedSettings(url string) config.Settings {
	return config.Settings{
		OrgURL:     url + "/tfs",
		Project:    "Fabrikam",
		AuthType:   "basic",
		Username:   "jdoe",
		Password:   "pw",
		SelfHosted: true,
		Collection: "DefaultCollection",
	}
}

func TestSelfHostedNegotiatesAPIVersionOnce(t *testing.T) {
	var options atomic.Int64
	var versions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			options.Add(1)
			assert.Equal(t, "/tfs/DefaultCollection/_apis/wit", r.URL.Path)
			_, _ = io.WriteString(w, witLocations)
			return
		}
		versions = append(versions, r.URL.Query().Get("api-version"))
		_, _ = io.WriteString(w, `{"workItems":[{"id":1}]}`)
	}))
	t.Cleanup(srv.Close)

	conn, err := Connect(selfHostedSettings(srv.URL))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := conn.ListItems(context.Background(), "SELECT [Id] FROM WorkItems")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), options.Load())
	assert.Equal(t, []string{"5.0", "5.0"}, versions)
}

func TestSelfHostedFallsBackWhenNegotiationFails(t *testing.T) {
	var options atomic.Int64
	var versions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			options.Add(1)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		versions = append(versions, r.URL.Query().Get("api-version"))
		_, _ = io.WriteString(w, `{"workItems":[]}`)
	}))
	t.Cleanup(srv.Close)

	conn, err := Connect(selfHostedSettings(srv.URL))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := conn.ListItems(context.Background(), "SELECT [Id] FROM WorkItems")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{FallbackServerAPIVersion, FallbackServerAPIVersion}, versions)
	assert.Equal(t, int64(2), options.Load(), "a failed negotiation is retried on the next query")
}

func TestConfiguredVersionSkipsNegotiation(t *testing.T) {
	var options atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			options.Add(1)
		}
		_, _ = io.WriteString(w, `{"workItems":[]}`)
	}))
	t.Cleanup(srv.Close)

	s := selfHostedSettings(srv.URL)
	s.APIVersion = "6.0"
	conn, err := Connect(s)
	require.NoError(t, err)

	_, err = conn.ListItems(context.Background(), "SELECT [Id] FROM WorkItems")
	require.NoError(t, err)
	assert.Zero(t, options.Load())
}

func TestPickVersion(t *testing.T) {
	tests := []struct {
		name string
		loc  resourceLocation
		want string
	}{
		{"released", resourceLocation{MaxVersion: "6.1", ReleasedVersion: "6.0"}, "6.0"},
		{"no released version", resourceLocation{MaxVersion: "4.1", ReleasedVersion: "0.0"}, "4.1"},
		{"preview only", resourceLocation{MaxVersion: "5.1-preview.2"}, "5.1-preview.2"},
		{"capped", resourceLocation{MaxVersion: "7.2", ReleasedVersion: "7.2"}, DefaultAPIVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickVersion(tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := pickVersion(resourceLocation{MaxVersion: "latest"})
	assert.Error(t, err)
}
