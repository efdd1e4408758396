package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Azure/go-ntlmssp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/azdo-lens/internal/config"
	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

var (
	cloud      = config.Topology{Endpoint: "https://dev.azure.com/contoso"}
	selfHosted = config.Topology{Endpoint: "https://tfs.contoso.local/tfs", SelfHosted: true}
)

func TestNewHandlerSelectsVariant(t *testing.T) {
	tests := []struct {
		name       string
		auth       config.Auth
		topo       config.Topology
		wantMode   config.Mode
		canRefresh bool
	}{
		{"pat cloud", config.TokenAuth{Token: "abc123"}, cloud, config.ModePAT, false},
		{"pat self-hosted", config.TokenAuth{Token: "abc123"}, selfHosted, config.ModePAT, false},
		{"ntlm", config.DomainAuth{Username: "jdoe", Password: "pw", Domain: "CONTOSO"}, selfHosted, config.ModeNTLM, false},
		{"basic", config.BasicAuth{Username: "jdoe", Password: "pw"}, selfHosted, config.ModeBasic, false},
		{"entra", config.AmbientIdentityAuth{}, cloud, config.ModeEntra, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.auth, tt.topo, WithCredential(&fakeCredential{}))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, h.Mode())

			unauthorized := &http.Response{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}
			assert.Equal(t, tt.canRefresh, h.CanRetry(unauthorized))

			err = h.Refresh(context.Background())
			if tt.canRefresh {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrRefreshUnsupported)
			}
		})
	}
}

func TestNewHandlerRejectsInvalidDescriptors(t *testing.T) {
	_, err := NewHandler(config.AmbientIdentityAuth{}, selfHosted)
	assert.True(t, errors.Is(err, azerrors.ErrUnsupportedCombination))

	_, err = NewHandler(config.TokenAuth{}, cloud)
	assert.True(t, errors.Is(err, azerrors.ErrMissingCredential))

	_, err = NewHandler(config.BasicAuth{Username: "jdoe"}, selfHosted)
	assert.True(t, errors.Is(err, azerrors.ErrMissingCredential))

	_, err = NewHandler(config.DomainAuth{Password: "pw"}, selfHosted)
	assert.True(t, errors.Is(err, azerrors.ErrMissingCredential))
}

func TestPATHandlerSendsTokenUnmodified(t *testing.T) {
	h, err := NewHandler(config.TokenAuth{Token: "abc123"}, cloud)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://dev.azure.com/contoso/_apis/projects", nil)
	require.NoError(t, h.PrepareRequest(context.Background(), req))

	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Empty(t, user)
	assert.Equal(t, "abc123", pass)
}

func TestBasicHandlerSendsCredentials(t *testing.T) {
	h, err := NewHandler(config.BasicAuth{Username: "jdoe", Password: "pw"}, selfHosted)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://tfs.contoso.local/tfs", nil)
	require.NoError(t, h.PrepareRequest(context.Background(), req))

	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "jdoe", user)
	assert.Equal(t, "pw", pass)
	assert.Equal(t, "basic(jdoe)", Describe(h))
}

func TestNTLMHandlerQualifiesUserAndWrapsTransport(t *testing.T) {
	h, err := NewHandler(config.DomainAuth{Username: "jdoe", Password: "pw", Domain: "CONTOSO"}, selfHosted)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://tfs.contoso.local/tfs", nil)
	require.NoError(t, h.PrepareRequest(context.Background(), req))
	user, _, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, `CONTOSO\jdoe`, user)

	w, ok := h.(TransportWrapper)
	require.True(t, ok, "ntlm handler must wrap the transport")
	rt := w.WrapTransport(nil)
	assert.IsType(t, ntlmssp.Negotiator{}, rt)

	// Only the NTLM handler decorates the transport.
	_, isWrapper := Handler(&PATHandler{token: "x"}).(TransportWrapper)
	assert.False(t, isWrapper)
}

func TestNTLMHandlerWithoutDomain(t *testing.T) {
	h := &NTLMHandler{username: "jdoe", password: "pw"}
	assert.Equal(t, "ntlm(jdoe)", h.String())
}
