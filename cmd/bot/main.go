package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/tradevisor/tradevisor/internal/ai"
	"github.com/tradevisor/tradevisor/internal/assistant"
	"github.com/tradevisor/tradevisor/internal/audit"
	"github.com/tradevisor/tradevisor/internal/bot"
	"github.com/tradevisor/tradevisor/internal/catalog"
	"github.com/tradevisor/tradevisor/internal/chain"
	"github.com/tradevisor/tradevisor/internal/config"
	"github.com/tradevisor/tradevisor/internal/market"
	"github.com/tradevisor/tradevisor/internal/observ"
	"github.com/tradevisor/tradevisor/internal/quota"
	"github.com/tradevisor/tradevisor/internal/roles"
	"github.com/tradevisor/tradevisor/internal/store"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "config path")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v (did you copy config.example.yaml?)", err)
	}
	cfg.ApplyEnv()

	if cfg.Telegram.Token == "" {
		log.Fatalf("telegram token missing: set TELEGRAM_TOKEN or telegram.token")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("load timezone %q: %v", cfg.Timezone, err)
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalf("open store %s: %v", cfg.StorePath, err)
	}
	if err := st.Migrate(); err != nil {
		log.Printf("warning: store migration failed, continuing on existing schema: %v", err)
	}

	trail, err := audit.New(cfg.AuditPath)
	if err != nil {
		log.Fatalf("open audit trail %s: %v", cfg.AuditPath, err)
	}

	resolver := roles.NewResolver(cfg.Roles.Owners, cfg.Roles.Admins)
	gate := quota.New(cfg.Quota.DailyLimit, cfg.Quota.MonthlyLimit, cfg.Quota.TierLimits, loc)

	marketTimeout := time.Duration(cfg.Market.TimeoutMs) * time.Millisecond
	normalizer := market.NewNormalizer(
		cfg.Market.Sources,
		marketTimeout,
		time.Duration(cfg.Market.CacheTTLSeconds)*time.Second,
		market.NewBinanceSource(cfg.Market.BinanceBaseURL, marketTimeout, cfg.Market.RateLimitPerMinute),
		market.NewTwelveDataSource(cfg.Market.TwelveDataBaseURL, cfg.Market.TwelveDataKey, marketTimeout, cfg.Market.RateLimitPerMinute),
		market.NewFrankfurterSource(cfg.Market.FrankfurterBaseURL, marketTimeout, cfg.Market.RateLimitPerMinute),
	)

	registry := ai.NewRegistry(
		ai.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel),
		ai.NewAnthropicProvider(cfg.AI.AnthropicKey, cfg.AI.AnthropicModel),
		ai.NewGatewayProvider(cfg.AI.GatewayURL, cfg.AI.GatewayKey, cfg.AI.GatewayModel),
	)
	if !registry.AnyConfigured(cfg.AI.TextChain) {
		log.Printf("warning: no text provider configured, analyses will be declined")
	}

	styles := catalog.New(cfg.Catalog.Path)
	if err := styles.Refresh(); err != nil {
		observ.LogErr("catalog_initial_refresh_failed", err, map[string]any{"path": cfg.Catalog.Path})
	}
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Catalog.RefreshCron, func() {
		if err := styles.Refresh(); err != nil {
			observ.LogErr("catalog_refresh_failed", err, map[string]any{"path": cfg.Catalog.Path})
		}
	}); err != nil {
		log.Fatalf("schedule catalog refresh %q: %v", cfg.Catalog.RefreshCron, err)
	}
	sched.Start()
	defer sched.Stop()

	asst := assistant.New(assistant.Config{
		TextChain:      cfg.AI.TextChain,
		VisionChain:    cfg.AI.VisionChain,
		PolishChain:    cfg.AI.PolishChain,
		AttemptTimeout: time.Duration(cfg.AI.AttemptTimeoutMs) * time.Millisecond,
		VisionBudget:   time.Duration(cfg.AI.VisionBudgetMs) * time.Millisecond,
		VisionGuard:    time.Duration(cfg.AI.VisionGuardMs) * time.Millisecond,
		MaxImageBytes:  cfg.AI.MaxImageBytes,
	}, st, resolver, gate, normalizer, registry, styles, trail)

	// Turn timeout covers the worst case: vision budget plus a polish pass.
	turnTimeout := time.Duration(cfg.AI.VisionBudgetMs+2*cfg.AI.AttemptTimeoutMs) * time.Millisecond
	tg, err := bot.New(cfg.Telegram.Token, asst, turnTimeout)
	if err != nil {
		log.Fatalf("init telegram bot: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observ.Handler())
	mux.Handle("/providers", chain.DefaultHealth.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		observ.Log("debug_listen", map[string]any{"addr": cfg.DebugAddr})
		if err := http.ListenAndServe(cfg.DebugAddr, mux); err != nil {
			observ.LogErr("debug_server_failed", err, nil)
		}
	}()

	observ.Log("startup", map[string]any{
		"timezone":     cfg.Timezone,
		"text_chain":   cfg.AI.TextChain,
		"vision_chain": cfg.AI.VisionChain,
		"sources":      cfg.Market.Sources,
		"daily_limit":  cfg.Quota.DailyLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		observ.Log("shutdown", map[string]any{"reason": "signal"})
		tg.Stop()
	}()

	tg.Start()
}
