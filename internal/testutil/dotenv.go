// Package testutil holds helpers for tests that talk to a real Azure DevOps organization.
package testutil

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var loadOnce sync.Once

// LoadDotEnv loads the nearest ".env" file found by walking up from the working directory.
// Variables already present in the environment are kept.
func LoadDotEnv() {
	loadOnce.Do(func() {
		if path, err := findUpwards(".env"); err == nil {
			_ = loadEnvFile(path)
		}
	})
}

// RequireLive skips t unless AZDO_LENS_LIVE is set. It loads .env first so the flag and the
// AZURE_DEVOPS_* settings can live there.
func RequireLive(t *testing.T) {
	t.Helper()
	LoadDotEnv()
	if v := strings.TrimSpace(os.Getenv("AZDO_LENS_LIVE")); v != "1" && !strings.EqualFold(v, "true") {
		t.Skip("set AZDO_LENS_LIVE=1 to run tests against a real Azure DevOps organization")
	}
}

func findUpwards(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("not found")
		}
		dir = parent
	}
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return sc.Err()
}

// parseLine parses KEY=VALUE, with an optional "export " prefix and surrounding quotes.
func parseLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if n := len(val); n >= 2 && (val[0] == '"' || val[0] == '\'') && val[n-1] == val[0] {
		val = val[1 : n-1]
	}
	return key, val, true
}
