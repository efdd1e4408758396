package config

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// Mode selects how requests are authenticated.
type Mode string

const (
	ModeUnspecified Mode = ""
	ModePAT         Mode = "pat"
	ModeNTLM        Mode = "ntlm"
	ModeBasic       Mode = "basic"
	ModeEntra       Mode = "entra"
)

var knownModes = []string{string(ModePAT), string(ModeNTLM), string(ModeBasic), string(ModeEntra)}

// ParseMode parses an auth mode selector. The empty string yields ModeUnspecified.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Mode(s) {
	case ModeUnspecified, ModePAT, ModeNTLM, ModeBasic, ModeEntra:
		return Mode(s), nil
	}
	if hint := closestMode(s); hint != "" {
		return "", azerrors.UnsupportedAuthMode("unknown auth type %q (did you mean %q?)", s, hint)
	}
	return "", azerrors.UnsupportedAuthMode("unknown auth type %q: expected one of %s", s, strings.Join(knownModes, ", "))
}

func closestMode(s string) string {
	best, bestDist := "", 3
	for _, m := range knownModes {
		if d := fuzzy.LevenshteinDistance(s, m); d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

// Auth describes the credentials used to talk to Azure DevOps.
// The implementations are TokenAuth, DomainAuth, BasicAuth and AmbientIdentityAuth.
type Auth interface {
	Mode() Mode
	isAuth()
}

// TokenAuth authenticates with a static personal access token.
type TokenAuth struct {
	Token string
}

// DomainAuth authenticates with Windows domain credentials (NTLM/Negotiate).
type DomainAuth struct {
	Username string
	Password string
	Domain   string
}

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	Username string
	Password string
}

// AmbientIdentityAuth authenticates with a Microsoft Entra ID token obtained from the environment.
type AmbientIdentityAuth struct{}

func NewTokenAuth(token string) (TokenAuth, error) {
	if token == "" {
		return TokenAuth{}, azerrors.MissingCredential("PAT authentication requires a personal access token")
	}
	return TokenAuth{Token: token}, nil
}

func NewDomainAuth(username, password, domain string) (DomainAuth, error) {
	if username == "" || password == "" {
		return DomainAuth{}, azerrors.MissingCredential("NTLM authentication requires username and password")
	}
	return DomainAuth{Username: username, Password: password, Domain: domain}, nil
}

func NewBasicAuth(username, password string) (BasicAuth, error) {
	if username == "" || password == "" {
		return BasicAuth{}, azerrors.MissingCredential("basic authentication requires username and password")
	}
	return BasicAuth{Username: username, Password: password}, nil
}

func (TokenAuth) Mode() Mode           { return ModePAT }
func (DomainAuth) Mode() Mode          { return ModeNTLM }
func (BasicAuth) Mode() Mode           { return ModeBasic }
func (AmbientIdentityAuth) Mode() Mode { return ModeEntra }

func (TokenAuth) isAuth()           {}
func (DomainAuth) isAuth()          {}
func (BasicAuth) isAuth()           {}
func (AmbientIdentityAuth) isAuth() {}

// String never includes secrets.
func (a TokenAuth) String() string { return "pat" }

func (a DomainAuth) String() string {
	if a.Domain != "" {
		return "ntlm(" + a.Domain + `\` + a.Username + ")"
	}
	return "ntlm(" + a.Username + ")"
}

func (a BasicAuth) String() string { return "basic(" + a.Username + ")" }

func (AmbientIdentityAuth) String() string { return "entra" }
