package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line   string
		key    string
		val    string
		wantOK bool
	}{
		{"AZURE_DEVOPS_PROJECT=Fabrikam", "AZURE_DEVOPS_PROJECT", "Fabrikam", true},
		{`export AZURE_DEVOPS_ORG_URL="https://dev.azure.com/contoso"`, "AZURE_DEVOPS_ORG_URL", "https://dev.azure.com/contoso", true},
		{"AZURE_DEVOPS_PASSWORD='a=b'", "AZURE_DEVOPS_PASSWORD", "a=b", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"=value", "", "", false},
		{"NOVALUE", "", "", false},
	}
	for _, tt := range tests {
		key, val, ok := parseLine(tt.line)
		assert.Equal(t, tt.wantOK, ok, tt.line)
		assert.Equal(t, tt.key, key, tt.line)
		assert.Equal(t, tt.val, val, tt.line)
	}
}

func TestLoadEnvFileKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AZDO_LENS_TEST_A=file\nAZDO_LENS_TEST_B=file\n"), 0o600))

	t.Setenv("AZDO_LENS_TEST_A", "env")
	t.Setenv("AZDO_LENS_TEST_B", "")
	require.NoError(t, os.Unsetenv("AZDO_LENS_TEST_B"))
	t.Cleanup(func() { _ = os.Unsetenv("AZDO_LENS_TEST_B") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "env", os.Getenv("AZDO_LENS_TEST_A"))
	assert.Equal(t, "file", os.Getenv("AZDO_LENS_TEST_B"))
}
