// Package config turns raw Azure DevOps settings into a validated auth descriptor and topology.
package config

import (
	"strings"

	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// Resolved is the validated form of Settings.
type Resolved struct {
	Project  string
	Auth     Auth
	Topology Topology
}

// Resolve validates s. It performs no I/O, and on error nothing downstream should be constructed.
//
// Unspecified auth mode means PAT for both cloud and self-hosted instances, and a token is then
// required. Microsoft Entra ID is only available for cloud organizations, while NTLM and basic
// credentials are only accepted for self-hosted servers.
func Resolve(s Settings) (Resolved, error) {
	mode, err := ParseMode(s.AuthType)
	if err != nil {
		return Resolved{}, err
	}
	auth, err := resolveAuth(mode, s)
	if err != nil {
		return Resolved{}, err
	}

	endpoint, err := normalizeEndpoint(s.OrgURL)
	if err != nil {
		return Resolved{}, err
	}
	project := strings.TrimSpace(s.Project)
	if project == "" {
		return Resolved{}, azerrors.InvalidSetting("missing project: set AZURE_DEVOPS_PROJECT or project")
	}

	topo := Topology{
		Endpoint:   endpoint,
		SelfHosted: s.SelfHosted,
		APIVersion: strings.TrimSpace(s.APIVersion),
	}
	if s.SelfHosted {
		topo.Collection = strings.Trim(strings.TrimSpace(s.Collection), "/")
	}
	return Resolved{Project: project, Auth: auth, Topology: topo}, nil
}

func resolveAuth(mode Mode, s Settings) (Auth, error) {
	if mode == ModeEntra {
		if s.SelfHosted {
			return nil, azerrors.UnsupportedCombination("Microsoft Entra ID authentication is not supported for on-premises Azure DevOps")
		}
		return AmbientIdentityAuth{}, nil
	}

	switch mode {
	case ModeNTLM, ModeBasic:
		var (
			auth Auth
			err  error
		)
		if mode == ModeNTLM {
			auth, err = NewDomainAuth(strings.TrimSpace(s.Username), s.Password, strings.TrimSpace(s.Domain))
		} else {
			auth, err = NewBasicAuth(strings.TrimSpace(s.Username), s.Password)
		}
		if err != nil {
			return nil, err
		}
		if !s.SelfHosted {
			return nil, azerrors.UnsupportedAuthMode("auth type %q is not supported for Azure DevOps cloud: use pat or entra", mode)
		}
		return auth, nil
	default:
		return NewTokenAuth(strings.TrimSpace(s.Token))
	}
}
