// Package azdo issues work item queries against an Azure DevOps organization or server.
package azdo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/golovatskygroup/azdo-lens/internal/auth"
	"github.com/golovatskygroup/azdo-lens/internal/config"
	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
	"github.com/golovatskygroup/azdo-lens/internal/httpcache"
)

// DefaultAPIVersion is sent as the api-version query parameter unless the Accept header pins one.
const DefaultAPIVersion = "7.1"

const userAgent = "azdo-lens"

// Connection is a handle on one Azure DevOps project. It is safe for concurrent use and is meant
// to live for the whole process.
type Connection struct {
	endpoint   string
	project    string
	apiVersion string
	handler    auth.Handler
	header     http.Header
	client     *http.Client
	logger     *zap.SugaredLogger

	// negotiate is set for self-hosted servers without a configured API version.
	negotiate    bool
	versionGroup singleflight.Group
	versionMu    sync.Mutex
	negotiated   string
}

type connOptions struct {
	base        http.RoundTripper
	cache       httpcache.Config
	timeout     time.Duration
	logger      *zap.SugaredLogger
	authOptions []auth.Option
}

// Option configures a Connection.
type Option func(*connOptions)

// WithTransport sets the base transport. Defaults to http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *connOptions) { o.base = rt }
}

// WithCache enables response caching for GET requests.
func WithCache(cfg httpcache.Config) Option {
	return func(o *connOptions) { o.cache = cfg }
}

func WithTimeout(d time.Duration) Option {
	return func(o *connOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *connOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAuthOptions passes options to auth.NewHandler when the handler is built by Connect.
func WithAuthOptions(opts ...auth.Option) Option {
	return func(o *connOptions) { o.authOptions = append(o.authOptions, opts...) }
}

func buildOptions(opts []Option) connOptions {
	o := connOptions{
		timeout: 30 * time.Second,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Connect resolves s, builds the matching auth handler and opens a Connection.
// Configuration errors are returned before any handler exists.
func Connect(s config.Settings, opts ...Option) (*Connection, error) {
	res, err := config.Resolve(s)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	h, err := auth.NewHandler(res.Auth, res.Topology, append([]auth.Option{auth.WithLogger(o.logger)}, o.authOptions...)...)
	if err != nil {
		return nil, err
	}
	return NewConnection(res, h, opts...)
}

// NewConnection opens a Connection for res authenticated by h.
func NewConnection(res config.Resolved, h auth.Handler, opts ...Option) (*Connection, error) {
	if h == nil {
		return nil, fmt.Errorf("azdo: nil auth handler")
	}
	o := buildOptions(opts)

	base := o.base
	if base == nil {
		base = http.DefaultTransport
	}
	if w, ok := h.(auth.TransportWrapper); ok {
		base = w.WrapTransport(base)
	}

	header := http.Header{}
	header.Set("User-Agent", userAgent)
	header.Set("Accept", "application/json")
	header.Set("X-TFS-FedAuthRedirect", "Suppress")
	header.Set("X-TFS-Session", uuid.NewString())
	if accept := res.Topology.AcceptHeader(); accept != "" {
		header.Set("Accept", accept)
	}

	apiVersion := DefaultAPIVersion
	if res.Topology.APIVersion != "" {
		apiVersion = res.Topology.APIVersion
	}

	c := &Connection{
		endpoint:   res.Topology.EffectiveEndpoint(),
		project:    res.Project,
		apiVersion: apiVersion,
		negotiate:  res.Topology.SelfHosted && res.Topology.APIVersion == "",
		handler:    h,
		header:     header,
		logger:     o.logger,
		client: &http.Client{
			Timeout:   o.timeout,
			Transport: httpcache.NewTransport(base, o.cache),
			// Azure DevOps redirects unauthenticated requests to a sign-in page.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	c.logger.Debugw("opened Azure DevOps connection",
		"endpoint", c.endpoint, "project", c.project, "auth", auth.Describe(h))
	return c, nil
}

// Endpoint is the effective base URL, including the collection for self-hosted servers.
func (c *Connection) Endpoint() string { return c.endpoint }

func (c *Connection) Project() string { return c.project }

func (c *Connection) AuthMode() config.Mode { return c.handler.Mode() }

func (c *Connection) projectURL(apiPath, apiVersion string) string {
	u := c.endpoint + "/" + url.PathEscape(c.project) + apiPath
	if !strings.Contains(c.header.Get("Accept"), "api-version=") {
		u += "?" + url.Values{"api-version": {apiVersion}}.Encode()
	}
	return u
}

// do sends one request and, if the handler asks for it, refreshes credentials and sends it once more.
// Credential acquisition errors are returned as is; everything else is a query execution error.
func (c *Connection) do(ctx context.Context, method, u string, body []byte) (int, []byte, error) {
	resp, err := c.send(ctx, method, u, body)
	if err != nil {
		return 0, nil, err
	}
	if c.handler.CanRetry(resp) {
		drain(resp)
		c.logger.Debugw("request rejected, refreshing credentials", "status", resp.StatusCode, "url", u)
		if err := c.handler.Refresh(ctx); err != nil {
			return 0, nil, err
		}
		resp, err = c.send(ctx, method, u, body)
		if err != nil {
			return 0, nil, err
		}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, azerrors.QueryExecution("read response", err)
	}
	if err := checkResponse(resp, b); err != nil {
		return resp.StatusCode, b, err
	}
	return resp.StatusCode, b, nil
}

func (c *Connection) send(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, azerrors.QueryExecution("build request", err)
	}
	for k, vv := range c.header {
		req.Header[k] = append([]string(nil), vv...)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.handler.PrepareRequest(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warnw("Azure DevOps request failed", "method", method, "url", u, "error", err)
		return nil, azerrors.QueryExecution(method+" "+u, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
