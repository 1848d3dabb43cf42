package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "RISK_SCORE_DEFAULT_PAGE_SIZE", "ALERT_SAMPLE_SIZE_PER_SHARD", "AUDIT_SINK", "REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := New()

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 1000, cfg.EntityAnalytics.DefaultPageSize)
	assert.Equal(t, 10000, cfg.EntityAnalytics.MaxPageSize)
	assert.Equal(t, 10000, cfg.EntityAnalytics.AlertSampleSizePerShard)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.AuditToLog())
	assert.True(t, cfg.AuditToDatabase())
}

func TestNew_Overrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("RISK_SCORE_DEFAULT_PAGE_SIZE", "250")
	t.Setenv("ALERT_SAMPLE_SIZE_PER_SHARD", "not-a-number")
	t.Setenv("AUDIT_SINK", "LOG")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := New()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 250, cfg.EntityAnalytics.DefaultPageSize)
	assert.Equal(t, 10000, cfg.EntityAnalytics.AlertSampleSizePerShard)
	assert.True(t, cfg.AuditToLog())
	assert.False(t, cfg.AuditToDatabase())
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetAllowedOrigins())
	assert.Empty(t, cfg.GetTrustedProxies())
}
