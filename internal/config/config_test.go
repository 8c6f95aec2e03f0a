package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func base() map[string]string {
	return map[string]string{
		"ORIGIN_URL":       "http://app:3000",
		"KASADA_API_HOST":  "api.kasada.example",
		"KASADA_APP_ID":    "app-1",
		"KASADA_TENANT_ID": "tenant-1",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(base()))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.OpsPort)
	assert.Equal(t, "2023-01-13-preview", cfg.Kasada.Version)
	assert.False(t, cfg.RequireToken)
	assert.False(t, cfg.Production)
	assert.Empty(t, cfg.TLSDomains)
	assert.Equal(t, "app:3000", cfg.Origin().Host)
	assert.Equal(t, "https://api.kasada.example/app-1/tenant-1/api/2023-01-13-preview/classification", cfg.Kasada.URL())
}

func TestFromEnv_Lists(t *testing.T) {
	m := base()
	m["TLS_DOMAINS"] = "Shop.example.com, ,www.example.com"
	m["ORIGIN_TRUSTED_HOSTS"] = "app"
	m["EDGE_ENV"] = "production"

	cfg, err := FromEnv(env(m))
	require.NoError(t, err)
	assert.Equal(t, []string{"shop.example.com", "www.example.com"}, cfg.TLSDomains)
	assert.Equal(t, []string{"app"}, cfg.OriginTrustedHosts)
	assert.True(t, cfg.Production)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		target error
	}{
		{name: "missing origin", mutate: func(m map[string]string) { delete(m, "ORIGIN_URL") }},
		{name: "relative origin", mutate: func(m map[string]string) { m["ORIGIN_URL"] = "/app" }},
		{name: "missing kasada host", mutate: func(m map[string]string) { delete(m, "KASADA_API_HOST") }},
		{name: "bad bool", mutate: func(m map[string]string) { m["KASADA_REQUIRE_TOKEN"] = "maybe" }},
		{name: "required token missing", mutate: func(m map[string]string) { m["KASADA_REQUIRE_TOKEN"] = "true" }, target: ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			_, err := FromEnv(env(m))
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestFromEnv_RequiredTokenPresent(t *testing.T) {
	m := base()
	m["KASADA_REQUIRE_TOKEN"] = "1"
	m["KASADA_TOKEN"] = "tok"

	cfg, err := FromEnv(env(m))
	require.NoError(t, err)
	assert.True(t, cfg.RequireToken)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	for k, v := range base() {
		t.Setenv(k, v)
	}
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
}
