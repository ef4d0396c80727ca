package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "timezone: UTC\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "UTC", cfg.Timezone)
	require.Equal(t, "127.0.0.1:8077", cfg.DebugAddr)
	require.Equal(t, 50, cfg.Quota.DailyLimit)
	require.Equal(t, []string{"openai", "anthropic", "gateway"}, cfg.AI.TextChain)
	require.Equal(t, []string{"openai", "anthropic"}, cfg.AI.VisionChain)
	require.Empty(t, cfg.AI.PolishChain)
	require.Equal(t, 45000, cfg.AI.AttemptTimeoutMs)
	require.Equal(t, 90000, cfg.AI.VisionBudgetMs)
	require.Equal(t, 500, cfg.AI.VisionGuardMs)
	require.Equal(t, int64(8<<20), cfg.AI.MaxImageBytes)
	require.Equal(t, []string{"binance", "twelvedata", "frankfurter"}, cfg.Market.Sources)
	require.Equal(t, "https://api.binance.com", cfg.Market.BinanceBaseURL)
	require.Equal(t, "@every 10m", cfg.Catalog.RefreshCron)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
quota:
  daily_limit: 5
  tier_limits:
    pro: 100
ai:
  text_chain: [gateway]
  attempt_timeout_ms: 1000
market:
  sources: [binance]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Quota.DailyLimit)
	require.Equal(t, 100, cfg.Quota.TierLimits["pro"])
	require.Equal(t, []string{"gateway"}, cfg.AI.TextChain)
	require.Equal(t, 1000, cfg.AI.AttemptTimeoutMs)
	require.Equal(t, []string{"binance"}, cfg.Market.Sources)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestApplyEnvWins(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: from-yaml
roles:
  owners: "1"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BOT_OWNERS", "2,@boss")
	cfg.ApplyEnv()

	require.Equal(t, "from-env", cfg.Telegram.Token)
	require.Equal(t, "sk-test", cfg.AI.OpenAIKey)
	require.Equal(t, "2,@boss", cfg.Roles.Owners)
}

func TestApplyEnvKeepsYamlWhenUnset(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: from-yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	t.Setenv("TELEGRAM_TOKEN", "")
	cfg.ApplyEnv()
	require.Equal(t, "from-yaml", cfg.Telegram.Token)
}
