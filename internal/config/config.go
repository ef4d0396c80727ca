package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Telegram struct {
	Token string `yaml:"token"` // usually left empty and taken from TELEGRAM_TOKEN
}

type Roles struct {
	Owners string `yaml:"owners"` // comma-separated ids or @handles
	Admins string `yaml:"admins"`
}

type Quota struct {
	DailyLimit   int            `yaml:"daily_limit"`
	MonthlyLimit int            `yaml:"monthly_limit"` // 0 disables the monthly ceiling
	TierLimits   map[string]int `yaml:"tier_limits"`   // subscription tier -> daily limit
}

type AI struct {
	TextChain   []string `yaml:"text_chain"`
	VisionChain []string `yaml:"vision_chain"`
	PolishChain []string `yaml:"polish_chain"` // empty = polish disabled

	AttemptTimeoutMs int   `yaml:"attempt_timeout_ms"`
	VisionBudgetMs   int   `yaml:"vision_budget_ms"`
	VisionGuardMs    int   `yaml:"vision_guard_ms"`
	MaxImageBytes    int64 `yaml:"max_image_bytes"`

	OpenAIKey      string `yaml:"openai_key"`
	OpenAIModel    string `yaml:"openai_model"`
	AnthropicKey   string `yaml:"anthropic_key"`
	AnthropicModel string `yaml:"anthropic_model"`
	GatewayURL     string `yaml:"gateway_url"`
	GatewayKey     string `yaml:"gateway_key"`
	GatewayModel   string `yaml:"gateway_model"`
}

type Market struct {
	Sources            []string `yaml:"sources"`
	TimeoutMs          int      `yaml:"timeout_ms"`
	CacheTTLSeconds    int      `yaml:"cache_ttl_seconds"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	TwelveDataKey      string   `yaml:"twelvedata_key"`
	BinanceBaseURL     string   `yaml:"binance_base_url"`
	FrankfurterBaseURL string   `yaml:"frankfurter_base_url"`
	TwelveDataBaseURL  string   `yaml:"twelvedata_base_url"`
}

type Catalog struct {
	Path        string `yaml:"path"`
	RefreshCron string `yaml:"refresh_cron"`
}

type Root struct {
	Timezone  string   `yaml:"timezone"`
	DebugAddr string   `yaml:"debug_addr"`
	StorePath string   `yaml:"store_path"`
	AuditPath string   `yaml:"audit_path"`
	Telegram  Telegram `yaml:"telegram"`
	Roles     Roles    `yaml:"roles"`
	Quota     Quota    `yaml:"quota"`
	AI        AI       `yaml:"ai"`
	Market    Market   `yaml:"market"`
	Catalog   Catalog  `yaml:"catalog"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	if c.Timezone == "" {
		c.Timezone = "Europe/Moscow"
	}
	if c.DebugAddr == "" {
		c.DebugAddr = "127.0.0.1:8077"
	}
	if c.StorePath == "" {
		c.StorePath = "data/users.db"
	}
	if c.AuditPath == "" {
		c.AuditPath = "data/analyses.jsonl"
	}

	if c.Quota.DailyLimit == 0 {
		c.Quota.DailyLimit = 50
	}

	if len(c.AI.TextChain) == 0 {
		c.AI.TextChain = []string{"openai", "anthropic", "gateway"}
	}
	if len(c.AI.VisionChain) == 0 {
		c.AI.VisionChain = []string{"openai", "anthropic"}
	}
	if c.AI.AttemptTimeoutMs == 0 {
		c.AI.AttemptTimeoutMs = 45000
	}
	if c.AI.VisionBudgetMs == 0 {
		c.AI.VisionBudgetMs = 90000
	}
	if c.AI.VisionGuardMs == 0 {
		c.AI.VisionGuardMs = 500
	}
	if c.AI.MaxImageBytes == 0 {
		c.AI.MaxImageBytes = 8 << 20
	}
	if c.AI.OpenAIModel == "" {
		c.AI.OpenAIModel = "gpt-4o"
	}
	if c.AI.AnthropicModel == "" {
		c.AI.AnthropicModel = "claude-sonnet-4-20250514"
	}
	if c.AI.GatewayModel == "" {
		c.AI.GatewayModel = "default"
	}

	if len(c.Market.Sources) == 0 {
		c.Market.Sources = []string{"binance", "twelvedata", "frankfurter"}
	}
	if c.Market.TimeoutMs == 0 {
		c.Market.TimeoutMs = 10000
	}
	if c.Market.CacheTTLSeconds == 0 {
		c.Market.CacheTTLSeconds = 60
	}
	if c.Market.RateLimitPerMinute == 0 {
		c.Market.RateLimitPerMinute = 60
	}
	if c.Market.BinanceBaseURL == "" {
		c.Market.BinanceBaseURL = "https://api.binance.com"
	}
	if c.Market.FrankfurterBaseURL == "" {
		c.Market.FrankfurterBaseURL = "https://api.frankfurter.app"
	}
	if c.Market.TwelveDataBaseURL == "" {
		c.Market.TwelveDataBaseURL = "https://api.twelvedata.com"
	}

	if c.Catalog.Path == "" {
		c.Catalog.Path = "data/styles.yaml"
	}
	if c.Catalog.RefreshCron == "" {
		c.Catalog.RefreshCron = "@every 10m"
	}

	return c, nil
}

// ApplyEnv overlays credentials from the environment. Env always wins so
// secrets never have to live in the yaml file.
func (c *Root) ApplyEnv() {
	overlay(&c.Telegram.Token, "TELEGRAM_TOKEN")
	overlay(&c.AI.OpenAIKey, "OPENAI_API_KEY")
	overlay(&c.AI.AnthropicKey, "ANTHROPIC_API_KEY")
	overlay(&c.AI.GatewayKey, "GATEWAY_API_KEY")
	overlay(&c.AI.GatewayURL, "GATEWAY_BASE_URL")
	overlay(&c.Market.TwelveDataKey, "TWELVEDATA_API_KEY")
	overlay(&c.Roles.Owners, "BOT_OWNERS")
	overlay(&c.Roles.Admins, "BOT_ADMINS")
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
