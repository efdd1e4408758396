package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the raw configuration as supplied by a file or the environment.
// Nothing in it is validated; see Resolve.
type Settings struct {
	OrgURL     string `yaml:"org_url"`
	Project    string `yaml:"project"`
	AuthType   string `yaml:"auth_type"`
	Token      string `yaml:"personal_access_token"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Domain     string `yaml:"domain"`
	SelfHosted bool   `yaml:"is_on_premises"`
	Collection string `yaml:"collection"`
	APIVersion string `yaml:"api_version"`

	// selfHostedSet records that SelfHosted was given explicitly, so an explicit false still wins
	// in WithFallback.
	selfHostedSet bool
}

// SettingsFromEnv reads the AZURE_DEVOPS_* environment variables.
func SettingsFromEnv() Settings {
	return settingsFrom(os.Getenv)
}

func settingsFrom(getenv func(string) string) Settings {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	onPrem := get("AZURE_DEVOPS_IS_ON_PREMISES")
	return Settings{
		OrgURL:     get("AZURE_DEVOPS_ORG_URL"),
		Project:    get("AZURE_DEVOPS_PROJECT"),
		AuthType:   get("AZURE_DEVOPS_AUTH_TYPE"),
		Token:      get("AZURE_DEVOPS_PERSONAL_ACCESS_TOKEN"),
		Username:   get("AZURE_DEVOPS_USERNAME"),
		Password:   getenv("AZURE_DEVOPS_PASSWORD"),
		Domain:     get("AZURE_DEVOPS_DOMAIN"),
		SelfHosted: truthy(onPrem),
		Collection: get("AZURE_DEVOPS_COLLECTION"),
		APIVersion: get("AZURE_DEVOPS_API_VERSION"),

		selfHostedSet: onPrem != "",
	}
}

func truthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

// LoadSettingsFile reads Settings from a YAML file.
func LoadSettingsFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	var presence struct {
		SelfHosted *bool `yaml:"is_on_premises"`
	}
	if err := yaml.Unmarshal(data, &presence); err != nil {
		return Settings{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	s.selfHostedSet = presence.SelfHosted != nil
	return s, nil
}

// WithFallback returns s with every empty field taken from fb.
// SelfHosted comes from s when s sets it explicitly or it is true, and from fb otherwise.
// Password is taken from s whenever it is non-empty, whitespace included.
func (s Settings) WithFallback(fb Settings) Settings {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	password := s.Password
	if password == "" {
		password = fb.Password
	}
	selfHosted, selfHostedSet := fb.SelfHosted, fb.selfHostedSet
	if s.selfHostedSet || s.SelfHosted {
		selfHosted, selfHostedSet = s.SelfHosted, true
	}
	return Settings{
		OrgURL:     pick(s.OrgURL, fb.OrgURL),
		Project:    pick(s.Project, fb.Project),
		AuthType:   pick(s.AuthType, fb.AuthType),
		Token:      pick(s.Token, fb.Token),
		Username:   pick(s.Username, fb.Username),
		Password:   password,
		Domain:     pick(s.Domain, fb.Domain),
		SelfHosted: selfHosted,
		Collection: pick(s.Collection, fb.Collection),
		APIVersion: pick(s.APIVersion, fb.APIVersion),

		selfHostedSet: selfHostedSet,
	}
}
