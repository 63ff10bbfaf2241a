package config_test

import (
	"testing"
	"time"

	"qabulxona/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "111,222")
	t.Setenv("GROUP_ID", "-100500")
	t.Setenv("DATABASE_URL", "postgres://localhost/qabulxona")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, []int64{111, 222}, cfg.AdminIDs)
	assert.Equal(t, int64(-100500), cfg.GroupID)
	assert.Equal(t, 10, cfg.RateLimitCapacity)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, config.IDSchemeComposite, cfg.ComplaintIDScheme)
	assert.Equal(t, "uz", cfg.DefaultLanguage)
	assert.False(t, cfg.RequireNationalID)
	assert.Equal(t, time.Duration(0), cfg.SessionIdleTimeout)
	assert.True(t, cfg.IsAdmin(222))
	assert.False(t, cfg.IsAdmin(333))
}

func TestLoad_MissingTokenFailsFast(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_TOKEN", "")

	_, err := config.Load()

	assert.Error(t, err)
}

func TestLoad_LegacyAdminID(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "")
	t.Setenv("ADMIN_ID", "777")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, []int64{777}, cfg.AdminIDs)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			AdminIDs:          []int64{1},
			GroupID:           -1,
			ComplaintIDScheme: config.IDSchemeNumeric,
			RateLimitBackend:  config.LimiterMemory,
			RateLimitCapacity: 10,
			RateLimitWindow:   time.Minute,
			Workers:           1,
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.AdminIDs = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.ComplaintIDScheme = "sequential"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.RateLimitBackend = config.LimiterRedis
	assert.Error(t, cfg.Validate(), "redis backend without REDIS_ADDR")
	cfg.RedisAddr = "localhost:6379"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.GroupID = 0
	assert.Error(t, cfg.Validate())
}

func TestLocationFallback(t *testing.T) {
	cfg := &config.Config{Timezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}
