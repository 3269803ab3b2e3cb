package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
service_name = "verification"
environment = "test"

[http]
host = "127.0.0.1"
port = 8080

[database]
dsn = "user:pass@tcp(127.0.0.1:3306)/tscmf?parseTime=True"

[watchlist]
path = "testdata/watchlist.json"

[limits]
program_ceiling = "1000000000"

[limits.country_ceilings]
vietnam = "200000000"
"sri lanka" = "80000000"

[checks]
eligibility_pass = true
exposure_pass = true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "verification", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "testdata/watchlist.json", cfg.Watchlist.Path)
	assert.True(t, cfg.Checks.EligibilityPass)

	program, err := cfg.ProgramCeiling()
	require.NoError(t, err)
	assert.True(t, program.Equal(decimal.NewFromInt(1_000_000_000)))
}

func TestCountryCeilingsAreUpperCased(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	ceilings, err := cfg.CountryCeilings()
	require.NoError(t, err)

	require.Contains(t, ceilings, "VIETNAM")
	require.Contains(t, ceilings, "SRI LANKA")
	assert.True(t, ceilings["VIETNAM"].Equal(decimal.NewFromInt(200_000_000)))
}

func TestLoadRejectsMissingServiceName(t *testing.T) {
	content := `
[http]
port = 8080
[database]
dsn = "x"
[watchlist]
path = "w.json"
[limits]
program_ceiling = "1"
`
	_, err := Load(writeConfig(t, content))
	assert.ErrorContains(t, err, "service_name")
}

func TestLoadRejectsBadCeiling(t *testing.T) {
	content := `
service_name = "verification"
[http]
port = 8080
[database]
dsn = "x"
[watchlist]
path = "w.json"
[limits]
program_ceiling = "not-a-number"
`
	_, err := Load(writeConfig(t, content))
	assert.ErrorContains(t, err, "program_ceiling")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
