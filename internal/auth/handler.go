// Package auth builds the request authenticators used to talk to Azure DevOps.
//
// There is one Handler per auth mode:
//
//   - PAT: personal access token sent as basic credentials with an empty user name
//   - NTLM: Windows domain credentials negotiated over NTLM/Negotiate (self-hosted only)
//   - Basic: user name and password (self-hosted only)
//   - Entra: Microsoft Entra ID bearer tokens from the ambient Azure identity chain (cloud only)
//
// Only the Entra handler can refresh its credentials. Callers get at most one retry per
// authentication failure: when CanRetry reports true, call Refresh and resend the request once.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"go.uber.org/zap"

	"github.com/golovatskygroup/azdo-lens/internal/config"
	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// ErrRefreshUnsupported is returned by Refresh on handlers with static credentials.
var ErrRefreshUnsupported = errors.New("auth: credentials cannot be refreshed")

// Handler authenticates outgoing requests.
type Handler interface {
	// PrepareRequest attaches credentials to req. It may block while a token is acquired.
	PrepareRequest(ctx context.Context, req *http.Request) error
	// CanRetry reports whether resp is an authentication failure that Refresh can fix.
	CanRetry(resp *http.Response) bool
	// Refresh discards cached credentials and acquires new ones. A nil error means the
	// failed request may be sent again, once.
	Refresh(ctx context.Context) error
	Mode() config.Mode
}

// TransportWrapper is implemented by handlers that need to decorate the HTTP transport.
type TransportWrapper interface {
	WrapTransport(base http.RoundTripper) http.RoundTripper
}

type options struct {
	credential azcore.TokenCredential
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// Option configures NewHandler.
type Option func(*options)

// WithCredential sets the token credential used by the Entra handler instead of the shared
// DefaultAzureCredential.
func WithCredential(c azcore.TokenCredential) Option {
	return func(o *options) { o.credential = c }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewHandler returns the Handler for a.
func NewHandler(a config.Auth, topo config.Topology, opts ...Option) (Handler, error) {
	o := options{
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch a := a.(type) {
	case config.TokenAuth:
		if a.Token == "" {
			return nil, azerrors.MissingCredential("PAT authentication requires a personal access token")
		}
		return &PATHandler{token: a.Token}, nil
	case config.DomainAuth:
		if a.Username == "" || a.Password == "" {
			return nil, azerrors.MissingCredential("NTLM authentication requires username and password")
		}
		return &NTLMHandler{username: a.Username, password: a.Password, domain: a.Domain}, nil
	case config.BasicAuth:
		if a.Username == "" || a.Password == "" {
			return nil, azerrors.MissingCredential("basic authentication requires username and password")
		}
		return &BasicHandler{username: a.Username, password: a.Password}, nil
	case config.AmbientIdentityAuth:
		if topo.SelfHosted {
			return nil, azerrors.UnsupportedCombination("Microsoft Entra ID authentication is not supported for on-premises Azure DevOps")
		}
		return newEntraHandler(o), nil
	default:
		return nil, azerrors.UnsupportedAuthMode("unsupported auth descriptor %T", a)
	}
}

// Describe returns a log-safe description of h.
func Describe(h Handler) string {
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return string(h.Mode())
}
