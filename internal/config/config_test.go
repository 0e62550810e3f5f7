package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "Sample - Superstore.xlsx", cfg.Data.File)
	require.True(t, cfg.Data.CacheEnabled)
	require.Equal(t, 30*time.Second, cfg.Data.LoadTimeout)
	require.Equal(t, 10, cfg.Dashboard.TopN)
	require.Equal(t, 50, cfg.Dashboard.MaxTableRows)
	require.Equal(t, "localhost:8084", cfg.Address())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_FILE", "sales.csv")
	t.Setenv("DASHBOARD_TOP_N", "5")
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sales.csv", cfg.Data.File)
	require.Equal(t, 5, cfg.Dashboard.TopN)
	require.Equal(t, 9000, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unsupported extension", "DATA_FILE", "sales.parquet"},
		{"negative top n", "DASHBOARD_TOP_N", "-1"},
		{"zero table rows", "DASHBOARD_MAX_TABLE_ROWS", "0"},
		{"bad port", "SERVER_PORT", "70000"},
		{"bad log level", "LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_MalformedValuesAreReported(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("DATA_LOAD_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), `SERVER_PORT="eighty"`)
	require.Contains(t, err.Error(), `DATA_LOAD_TIMEOUT="soon"`)
}

func TestLoad_ListsAndCase(t *testing.T) {
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
	require.Equal(t, "debug", cfg.Logger.Level)
}
