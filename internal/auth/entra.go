package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/golovatskygroup/azdo-lens/internal/config"
	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// AzureDevOpsScope is the Entra ID scope of the Azure DevOps resource.
const AzureDevOpsScope = "499b84ac-1321-427f-aa17-267ca6975798/.default"

// refreshSkew is how long before expiry a cached token is replaced.
const refreshSkew = 60 * time.Second

var (
	defaultCredentialOnce sync.Once
	defaultCredential     azcore.TokenCredential
	errDefaultCredential  error
)

// DefaultCredential returns the process-wide DefaultAzureCredential, creating it on first use.
func DefaultCredential() (azcore.TokenCredential, error) {
	defaultCredentialOnce.Do(func() {
		defaultCredential, errDefaultCredential = azidentity.NewDefaultAzureCredential(nil)
	})
	return defaultCredential, errDefaultCredential
}

// CachedToken is an access token and its expiry.
type CachedToken struct {
	Value     string
	ExpiresAt time.Time
}

// EntraHandler authenticates with Entra ID bearer tokens and refreshes them shortly before they
// expire or when the service rejects them.
//
// Concurrent acquisitions are collapsed into one call to the credential. If the token expires while
// several requests are in flight, a second acquisition may start right after the first finished;
// both store a valid token.
type EntraHandler struct {
	credential func() (azcore.TokenCredential, error)
	logger     *zap.SugaredLogger
	now        func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	token CachedToken
}

func newEntraHandler(o options) *EntraHandler {
	cred := DefaultCredential
	if o.credential != nil {
		c := o.credential
		cred = func() (azcore.TokenCredential, error) { return c, nil }
	}
	return &EntraHandler{credential: cred, logger: o.logger, now: o.now}
}

func (h *EntraHandler) PrepareRequest(ctx context.Context, req *http.Request) error {
	tok, err := h.ensureToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// CanRetry reports true for 401 responses, except the "non-authoritative" variants which a new
// token will not fix.
func (h *EntraHandler) CanRetry(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	return !strings.Contains(strings.ToLower(resp.Status), "non-authoritative")
}

func (h *EntraHandler) Refresh(ctx context.Context) error {
	h.mu.Lock()
	h.token = CachedToken{}
	h.mu.Unlock()

	h.logger.Debugw("discarded cached Entra ID token", "scope", AzureDevOpsScope)
	_, err := h.acquire(ctx)
	return err
}

func (h *EntraHandler) Mode() config.Mode { return config.ModeEntra }

func (h *EntraHandler) String() string { return "entra" }

func (h *EntraHandler) cached() (CachedToken, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.token.Value == "" || !h.token.ExpiresAt.After(h.now().Add(refreshSkew)) {
		return CachedToken{}, false
	}
	return h.token, true
}

func (h *EntraHandler) ensureToken(ctx context.Context) (string, error) {
	if tok, ok := h.cached(); ok {
		return tok.Value, nil
	}
	return h.acquire(ctx)
}

// acquire fetches a token in a flight shared by all concurrent callers. The flight is detached from
// the caller's cancellation; a cancelled caller stops waiting without failing the others.
func (h *EntraHandler) acquire(ctx context.Context) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := h.group.DoChan("token", func() (any, error) {
		cred, err := h.credential()
		if err != nil {
			return nil, azerrors.CredentialAcquisition(err)
		}
		at, err := cred.GetToken(flightCtx, policy.TokenRequestOptions{Scopes: []string{AzureDevOpsScope}})
		if err != nil {
			return nil, azerrors.CredentialAcquisition(err)
		}
		if at.Token == "" {
			return nil, azerrors.CredentialAcquisition(errors.New("identity provider returned an empty token"))
		}

		tok := CachedToken{Value: at.Token, ExpiresAt: at.ExpiresOn}
		h.mu.Lock()
		h.token = tok
		h.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", azerrors.CredentialAcquisition(ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			h.logger.Warnw("Entra ID token acquisition failed", "error", r.Err)
			return "", r.Err
		}
		tok := r.Val.(CachedToken)
		h.logger.Debugw("acquired Entra ID token", "expires_at", tok.ExpiresAt, "shared", r.Shared)
		return tok.Value, nil
	}
}
