package config

import (
	"maps"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

type configTestTable struct {
	name        string
	setFields   configFields
	errContains string
}

type configFields map[string]interface{}

var validAppConfig = configFields{
	"id":                      "test",
	"concurrency":             4,
	"postgres.address":        "localhost",
	"postgres.port":           5432,
	"postgres.username":       "u",
	"postgres.password":       "p",
	"postgres.db_name":        "d",
	"postgres.max_connection": 10,
	"vault.address":           "http://localhost:8200",
	"vault.token":             "t",
	"vault.tls_skip_verify":   true,
}

func deleteFromMap(m configFields, keys ...string) configFields {
	clonedMap := maps.Clone(m)
	for _, argument := range keys {
		delete(clonedMap, argument)
	}

	return clonedMap
}

func updateAndReturnMap(m configFields, key string, value interface{}) configFields {
	clonedMap := maps.Clone(m)
	clonedMap[key] = value
	return clonedMap
}

func TestConfigLoadFromYAML(t *testing.T) {
	viper.Reset()
	viper.SetConfigFile(filepath.Join("testdata", "config.yaml"))
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadInConfig())

	cfg, err := NewConfig()

	require.NoError(t, err)

	require.Equal(t, "test", cfg.ID)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 4, cfg.Concurrency)

	require.Equal(t, "localhost", cfg.Postgres.Address)
	require.Equal(t, 5432, cfg.Postgres.Port)
	require.Equal(t, "postgres", cfg.Postgres.Username)
	require.Equal(t, "esg_sync", cfg.Postgres.DBName)
	require.Equal(t, "disable", cfg.Postgres.SSLMode)
	require.Equal(t, 10, cfg.Postgres.MaxConnections)

	require.Equal(t, "http://localhost:8200", cfg.Vault.Address)
	require.Equal(t, "test-token", cfg.Vault.Token)
	require.True(t, cfg.Vault.TLSSkipVerify)

	require.Equal(t, 15, cfg.HTTP.TimeoutSeconds)
}

func TestConfigValidation(t *testing.T) {
	testCases := []configTestTable{
		{
			name:        "missing id",
			setFields:   deleteFromMap(validAppConfig, "id"),
			errContains: "ID",
		},
		{
			name:        "missing concurrency",
			setFields:   deleteFromMap(validAppConfig, "concurrency"),
			errContains: "Concurrency",
		},
		{
			name:        "negative concurrency",
			setFields:   updateAndReturnMap(validAppConfig, "concurrency", -1),
			errContains: "Concurrency",
		},
		{
			name:        "missing postgres address",
			setFields:   deleteFromMap(validAppConfig, "postgres.address"),
			errContains: "Address",
		},
		{
			name:        "missing postgres port",
			setFields:   deleteFromMap(validAppConfig, "postgres.port"),
			errContains: "Port",
		},
		{
			name:        "missing vault token",
			setFields:   deleteFromMap(validAppConfig, "vault.token"),
			errContains: "Token",
		},
		{
			name:      "valid config",
			setFields: validAppConfig,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			for key, value := range tc.setFields {
				viper.Set(key, value)
			}

			cfg, err := NewConfig()

			if tc.errContains == "" {
				require.NoError(t, err)
				require.NotNil(t, cfg)
			} else {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errContains)
				require.Nil(t, cfg)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	viper.Reset()
	for key, value := range validAppConfig {
		viper.Set(key, value)
	}

	cfg, err := NewConfig()

	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, defaultHTTPTimeoutSeconds, cfg.HTTP.TimeoutSeconds)
}
