package config

import (
	"net/url"
	"strings"

	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// Topology describes where the Azure DevOps instance lives.
type Topology struct {
	// Endpoint is the organization URL (cloud) or server URL (self-hosted), without a trailing slash.
	Endpoint   string
	SelfHosted bool
	// Collection is only used for self-hosted servers.
	Collection string
	APIVersion string
}

// EffectiveEndpoint is the base URL requests are issued against.
func (t Topology) EffectiveEndpoint() string {
	if t.SelfHosted && t.Collection != "" {
		return t.Endpoint + "/" + t.Collection
	}
	return t.Endpoint
}

// AcceptHeader returns the Accept header that pins the API version, or "" when none applies.
func (t Topology) AcceptHeader() string {
	if t.SelfHosted && t.APIVersion != "" {
		return "application/json;api-version=" + t.APIVersion
	}
	return ""
}

func normalizeEndpoint(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", azerrors.InvalidSetting("missing organization URL: set AZURE_DEVOPS_ORG_URL or org_url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", azerrors.New(azerrors.KindInvalidSetting, "invalid organization URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", azerrors.InvalidSetting("organization URL must be an absolute http(s) URL, got %q", raw)
	}
	return raw, nil
}
