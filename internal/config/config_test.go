package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

func loadWith(t *testing.T, env map[string]string) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for k, v := range env {
		t.Setenv(k, v)
	}
	setDefaults()
	viper.AutomaticEnv()
	return fromViper()
}

func TestDefaults(t *testing.T) {
	cfg := loadWith(t, nil)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, domain.DefaultSettings(), cfg.Analysis)
	assert.Equal(t, 3, cfg.Matching.Brands().MaxTokens)
	assert.Equal(t, 2, cfg.Matching.Brands().KeepTokens)
	assert.Equal(t, "0 6 * * *", cfg.Scheduler.SyncCron)
}

func TestAnalysisOverrides(t *testing.T) {
	cfg := loadWith(t, map[string]string{
		"ALERT_SECURITY_DAYS":  "20",
		"GROWTH_PARAPHARM":     "12.5",
		"TARGET_MONTHS_AX":     "4",
		"DATABASE_URL":         "postgres://u:p@db/pharmstock",
		"STORAGE_INBOX_PREFIX": "drop/",
	})
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20.0, cfg.Analysis.AlertSecurity)
	assert.Equal(t, 12.5, cfg.Analysis.GrowthCategories[domain.CategoryParapharm])
	assert.Equal(t, 4.0, cfg.Analysis.TargetMonths["AX"])
	assert.Equal(t, 2.5, cfg.Analysis.TargetMonths["AY"])
	assert.Equal(t, "postgres://u:p@db/pharmstock", cfg.Database.DSN())
	assert.Equal(t, "drop/", cfg.Storage.InboxPrefix)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "keep exceeds max tokens", env: map[string]string{"MATCH_BRAND_MAX_TOKENS": "2", "MATCH_BRAND_KEEP_TOKENS": "3"}},
		{name: "security below rupture", env: map[string]string{"ALERT_RUPTURE_DAYS": "10", "ALERT_SECURITY_DAYS": "5"}},
		{name: "storage without bucket", env: map[string]string{"STORAGE_ENABLED": "true", "STORAGE_ENDPOINT": "s3.local"}},
		{name: "bad server mode", env: map[string]string{"SERVER_MODE": "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadWith(t, tt.env)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())
}
