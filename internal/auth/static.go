package auth

import (
	"context"
	"net/http"

	"github.com/Azure/go-ntlmssp"

	"github.com/golovatskygroup/azdo-lens/internal/config"
)

type noRefresh struct{}

func (noRefresh) CanRetry(*http.Response) bool { return false }

func (noRefresh) Refresh(context.Context) error { return ErrRefreshUnsupported }

// PATHandler sends a personal access token the way Azure DevOps expects it:
// basic credentials with an empty user name.
type PATHandler struct {
	noRefresh
	token string
}

func (h *PATHandler) PrepareRequest(_ context.Context, req *http.Request) error {
	req.SetBasicAuth("", h.token)
	return nil
}

func (h *PATHandler) Mode() config.Mode { return config.ModePAT }

func (h *PATHandler) String() string { return "pat" }

// BasicHandler sends a user name and password as basic credentials.
type BasicHandler struct {
	noRefresh
	username string
	password string
}

func (h *BasicHandler) PrepareRequest(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(h.username, h.password)
	return nil
}

func (h *BasicHandler) Mode() config.Mode { return config.ModeBasic }

func (h *BasicHandler) String() string { return "basic(" + h.username + ")" }

// NTLMHandler authenticates with Windows domain credentials. The credentials are attached as
// basic auth and the negotiator installed by WrapTransport turns them into an NTLM or Negotiate
// handshake when the server asks for one.
type NTLMHandler struct {
	noRefresh
	username string
	password string
	domain   string
}

func (h *NTLMHandler) PrepareRequest(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(h.account(), h.password)
	return nil
}

func (h *NTLMHandler) WrapTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return ntlmssp.Negotiator{RoundTripper: base}
}

func (h *NTLMHandler) account() string {
	if h.domain == "" {
		return h.username
	}
	return h.domain + `\` + h.username
}

func (h *NTLMHandler) Mode() config.Mode { return config.ModeNTLM }

func (h *NTLMHandler) String() string { return "ntlm(" + h.account() + ")" }
