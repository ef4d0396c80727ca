// Package assistant orchestrates one inbound message end to end: state
// machine, quota gate, market snapshot, prompt composition, provider chain,
// polish pass, charge and audit. Transports stay thin and call Handle.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradevisor/tradevisor/internal/ai"
	"github.com/tradevisor/tradevisor/internal/audit"
	"github.com/tradevisor/tradevisor/internal/catalog"
	"github.com/tradevisor/tradevisor/internal/chain"
	"github.com/tradevisor/tradevisor/internal/convo"
	"github.com/tradevisor/tradevisor/internal/market"
	"github.com/tradevisor/tradevisor/internal/observ"
	"github.com/tradevisor/tradevisor/internal/prompt"
	"github.com/tradevisor/tradevisor/internal/quota"
	"github.com/tradevisor/tradevisor/internal/roles"
	"github.com/tradevisor/tradevisor/internal/store"
)

// Outcome codes a transport can render without parsing error text.
const (
	CodeOK                    = "ok"
	CodeAuthFailed            = "auth_failed"
	CodeOnboardingRequired    = "onboarding_required"
	CodeInvalidSymbol         = "invalid_symbol"
	CodeQuotaExceeded         = "quota_exceeded"
	CodeAINotConfigured       = "ai_not_configured"
	CodeMarketDataUnavailable = "market_data_unavailable"
	CodeTryAgain              = "try_again"
)

// Inbound is one message from a transport. Exactly one of Text, Command or
// ImageURL drives the turn; Text may accompany ImageURL as a caption.
type Inbound struct {
	UserID   string
	Handle   string
	Text     string
	Command  string
	ImageURL string
}

// Outbound is what the transport should say back.
type Outbound struct {
	Text      string
	Code      string
	Action    convo.Action
	State     convo.State
	QuotaLine string
}

// Config is the slice of runtime configuration the orchestrator needs.
type Config struct {
	TextChain      []string
	VisionChain    []string
	PolishChain    []string
	AttemptTimeout time.Duration
	VisionBudget   time.Duration
	VisionGuard    time.Duration
	MaxImageBytes  int64
}

type Assistant struct {
	cfg       Config
	store     *store.Store
	roles     *roles.Resolver
	gate      *quota.Gate
	marketsrc *market.Normalizer
	registry  *ai.Registry
	styles    *catalog.Catalog
	trail     *audit.Trail
	client    *http.Client
}

func New(cfg Config, st *store.Store, rr *roles.Resolver, gate *quota.Gate, n *market.Normalizer, reg *ai.Registry, styles *catalog.Catalog, trail *audit.Trail) *Assistant {
	return &Assistant{
		cfg:       cfg,
		store:     st,
		roles:     rr,
		gate:      gate,
		marketsrc: n,
		registry:  reg,
		styles:    styles,
		trail:     trail,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Handle runs one conversational turn. It never returns an error to the
// transport; failures become Outbound codes so the user always gets a reply.
func (a *Assistant) Handle(ctx context.Context, in Inbound) Outbound {
	if strings.TrimSpace(in.UserID) == "" {
		return Outbound{Code: CodeAuthFailed, Text: "I couldn't identify you. Please restart the chat."}
	}
	u, err := a.store.Get(ctx, in.UserID)
	if err != nil {
		observ.LogErr("user_load_failed", err, map[string]any{"user": in.UserID})
		u = store.NewUser(in.UserID)
	}
	if in.Handle != "" {
		u.Handle = in.Handle
	}
	role := a.roles.Role(in.UserID, in.Handle)

	var out Outbound
	switch {
	case in.ImageURL != "":
		out = a.visionTurn(ctx, u, role, in)
	default:
		out = a.textTurn(ctx, u, role, in)
	}

	if err := a.store.Put(ctx, u); err != nil {
		observ.LogErr("user_save_failed", err, map[string]any{"user": u.ID})
	}
	out.State = convo.ParseState(u.ConvState)
	if out.Code == "" {
		out.Code = CodeOK
	}
	return out
}

func (a *Assistant) textTurn(ctx context.Context, u *store.User, role roles.Role, in Inbound) Outbound {
	var input convo.Input
	if in.Command != "" {
		input = convo.Command(in.Command)
	} else {
		input = convo.Classify(in.Text)
	}

	d := convo.Step(u, input)
	observ.Log("convo_step", map[string]any{
		"user": u.ID, "class": input.Class.String(), "action": d.Action.String(), "state": d.State.Tag(),
	})

	switch d.Action {
	case convo.ActionAnalyze:
		return a.analyze(ctx, u, role, d.Question, nil)
	default:
		out := Outbound{Text: a.sayFor(u, d), Action: d.Action}
		switch {
		case d.Action == convo.ActionAskOnboarding && input.Class != convo.ClassFree:
			// The user tried to start something that needs a profile first.
			out.Code = CodeOnboardingRequired
		case d.Action == convo.ActionReprompt && d.State == convo.StateChooseSymbol:
			out.Code = CodeInvalidSymbol
		}
		return out
	}
}

func (a *Assistant) visionTurn(ctx context.Context, u *store.User, role roles.Role, in Inbound) Outbound {
	if !u.Onboarded() {
		d := convo.BeginOnboarding(u)
		return Outbound{Code: CodeOnboardingRequired, Text: a.sayFor(u, d), Action: d.Action}
	}
	img := chain.NewScratch(in.ImageURL, a.cfg.MaxImageBytes, a.client)
	out := a.analyze(ctx, u, role, strings.TrimSpace(in.Text), img)
	// A photo turn settles the conversation like any other orchestration.
	u.ConvState = convo.StateIdle.Tag()
	return out
}

// analyze runs the charged part of a turn. The quota counter moves only
// after a provider chain succeeds.
func (a *Assistant) analyze(ctx context.Context, u *store.User, role roles.Role, question string, img *chain.Scratch) Outbound {
	kind := "text"
	chainIDs := a.chainFor(u.TextChain, a.cfg.TextChain)
	if img != nil {
		kind = "vision"
		chainIDs = a.chainFor(u.VisionChain, a.cfg.VisionChain)
	}

	if !a.registry.AnyConfigured(chainIDs) {
		return Outbound{Code: CodeAINotConfigured, Text: "No analysis engine is configured right now. Please try again later."}
	}
	if !a.gate.CanConsume(u, role) {
		return Outbound{
			Code:      CodeQuotaExceeded,
			Text:      "You've used today's analysis quota.",
			QuotaLine: a.gate.Describe(u, role),
		}
	}

	var snap *market.Snapshot
	if img == nil {
		tf, ok := market.ParseTimeframe(u.Timeframe)
		if !ok {
			tf = market.TF1h
		}
		s, err := a.marketsrc.Snapshot(ctx, u.SelectedSymbol, tf)
		if err != nil {
			observ.LogErr("snapshot_failed", err, map[string]any{"user": u.ID, "symbol": u.SelectedSymbol})
			return a.fail(CodeMarketDataUnavailable, "Market data for "+u.SelectedSymbol+" is unavailable right now.", err, role)
		}
		snap = s
	}

	style := a.styles.Lookup(u.Style)
	req := prompt.Compose(prompt.DefaultInstruction, style, snap, question)

	started := time.Now()
	var (
		res chain.Result
		err error
	)
	if img != nil {
		res, err = chain.RunBudget(ctx, "vision", chainIDs, a.cfg.AttemptTimeout, a.cfg.VisionBudget, a.cfg.VisionGuard,
			func(ctx context.Context, id string) (string, error) {
				p, ok := a.registry.Lookup(id)
				if !ok {
					return "", ai.ErrNotConfigured
				}
				return p.Vision(ctx, req, img)
			})
	} else {
		res, err = chain.Run(ctx, "text", chainIDs, a.cfg.AttemptTimeout,
			func(ctx context.Context, id string) (string, error) {
				p, ok := a.registry.Lookup(id)
				if !ok {
					return "", ai.ErrNotConfigured
				}
				return p.Generate(ctx, req)
			})
	}
	observ.RecordDuration("analysis_ms", time.Since(started), map[string]string{"kind": kind})
	if err != nil {
		return a.fail(a.codeFor(err), "I couldn't complete that analysis. Please try again.", err, role)
	}

	answer := a.polish(ctx, u, res.Text)

	a.gate.Consume(u, role)
	a.trail.Append(audit.Record{
		ID:       uuid.NewString(),
		UserID:   u.ID,
		Symbol:   u.SelectedSymbol,
		Kind:     kind,
		Provider: res.Provider,
		Question: question,
		Answer:   answer,
	})
	observ.IncCounter("analyses_total", map[string]string{"kind": kind, "provider": res.Provider})

	return Outbound{
		Text:      answer,
		Action:    convo.ActionAnalyze,
		QuotaLine: a.gate.Describe(u, role),
	}
}

// polish runs the rewrite chain. It can only improve the answer, never lose
// it: any failure returns the original text.
func (a *Assistant) polish(ctx context.Context, u *store.User, text string) string {
	ids := a.chainFor(u.PolishChain, a.cfg.PolishChain)
	if len(ids) == 0 {
		return text
	}
	res, err := chain.Run(ctx, "polish", ids, a.cfg.AttemptTimeout,
		func(ctx context.Context, id string) (string, error) {
			p, ok := a.registry.Lookup(id)
			if !ok {
				return "", ai.ErrNotConfigured
			}
			return p.Polish(ctx, text)
		})
	if err != nil {
		observ.LogErr("polish_failed", err, map[string]any{"user": u.ID})
		return text
	}
	return res.Text
}

func (a *Assistant) chainFor(stored string, fallback []string) []string {
	if ids := store.ChainOverride(stored); ids != nil {
		return ids
	}
	return fallback
}

// codeFor maps an AI chain failure onto the coarse external codes. Chain
// exhaustion and vision-budget expiry both surface as ai_not_configured;
// try_again is reserved for uncategorized failures like a cancelled turn.
func (a *Assistant) codeFor(err error) string {
	var exhausted *chain.ExhaustedError
	switch {
	case errors.Is(err, market.ErrMarketDataUnavailable):
		return CodeMarketDataUnavailable
	case errors.Is(err, ai.ErrNotConfigured),
		errors.Is(err, chain.ErrBudgetExceeded),
		errors.As(err, &exhausted):
		return CodeAINotConfigured
	default:
		return CodeTryAgain
	}
}

// fail builds an error reply. Privileged users get the raw cause appended,
// everyone else sees only the friendly line.
func (a *Assistant) fail(code, text string, err error, role roles.Role) Outbound {
	observ.IncCounter("analysis_failures_total", map[string]string{"code": code})
	if role.Privileged() && err != nil {
		text = fmt.Sprintf("%s\n\ndebug: %v", text, err)
	}
	return Outbound{Code: code, Text: text}
}

// sayFor renders the canned reply for a non-analysis transition.
func (a *Assistant) sayFor(u *store.User, d convo.Decision) string {
	switch d.Action {
	case convo.ActionShowHome:
		if u.Name != "" {
			return "Hi " + u.Name + "! Send me a symbol like BTCUSDT or EURUSD, or pick an option below."
		}
		return "Welcome! Send me a symbol like BTCUSDT or EURUSD to get started."
	case convo.ActionAskSymbol:
		return "Which instrument should I look at? For example BTCUSDT, EURUSD or XAUUSD."
	case convo.ActionAskPrompt:
		return u.SelectedSymbol + " selected. Hit Analyze when you're ready to spend one analysis on it."
	case convo.ActionAskSetting:
		switch d.Question {
		case "timeframe":
			return "Pick a timeframe: 15m, 1h, 4h or 1d."
		case "style":
			return "Which voice should I use? " + strings.Join(a.styleLabels(), ", ") + "."
		case "risk":
			return "Risk appetite: low, med or high?"
		case "news":
			return "Include news context in analyses? on / off"
		}
		return "Send a value for " + d.Question + "."
	case convo.ActionSettingSaved:
		return "Saved. Your " + d.Question + " preference is updated."
	case convo.ActionAskOnboarding:
		switch d.Question {
		case "name":
			return "Before we start, what should I call you?"
		case "contact":
			return "How can I reach you? Share a phone number or email."
		case "experience":
			return "How experienced are you with trading? (beginner / intermediate / advanced)"
		case "market":
			return "Which market interests you most? (crypto / forex / commodities)"
		}
		return "Let's finish your profile first."
	case convo.ActionAskQuiz:
		q, _ := convo.ParseState(u.ConvState).Quiz()
		return quizQuestions[q]
	case convo.ActionQuizComplete:
		return "Quiz done, thanks! I'll tune my analyses to your answers."
	default:
		if d.State == convo.StateAwaitPrompt {
			return "Hit Analyze to run the readout for " + u.SelectedSymbol + ", send another symbol, or go Back."
		}
		return "I didn't catch that. Send a symbol, or tap Home to see the menu."
	}
}

func (a *Assistant) styleLabels() []string {
	labels, _ := a.styles.Labels()
	if len(labels) == 0 {
		return []string{catalog.DefaultOverlay.Label}
	}
	return labels
}

var quizQuestions = [5]string{
	"1/5: How long do you usually hold a position?",
	"2/5: What share of your portfolio goes into a single trade?",
	"3/5: Do you lean on technicals, fundamentals, or both?",
	"4/5: How do you react to a 10% drawdown?",
	"5/5: What's your main goal: income, growth, or learning?",
}
