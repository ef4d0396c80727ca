// Package convo is the per-user conversation state machine. It is the sole
// gatekeeper deciding whether an input may start quota-consuming work: the
// machine runs before the quota gate, and the quota gate before any provider
// chain.
package convo

import (
	"fmt"
	"strings"

	"github.com/tradevisor/tradevisor/internal/clockid"
	"github.com/tradevisor/tradevisor/internal/market"
)

// State is the closed set of conversation positions. An unrecognized
// persisted tag decodes to StateIdle.
type State int

const (
	StateIdle State = iota
	StateChooseSymbol
	StateAwaitPrompt
	StateSetTimeframe
	StateSetStyle
	StateSetRisk
	StateSetNews
	StateOnboardingName
	StateOnboardingContact
	StateOnboardingExperience
	StateOnboardingMarket
	StateQuiz0
	StateQuiz1
	StateQuiz2
	StateQuiz3
	StateQuiz4
)

var stateTags = map[State]string{
	StateIdle:                 "idle",
	StateChooseSymbol:         "choose_symbol",
	StateAwaitPrompt:          "await_prompt",
	StateSetTimeframe:         "set_timeframe",
	StateSetStyle:             "set_style",
	StateSetRisk:              "set_risk",
	StateSetNews:              "set_news",
	StateOnboardingName:       "onboarding_name",
	StateOnboardingContact:    "onboarding_contact",
	StateOnboardingExperience: "onboarding_experience",
	StateOnboardingMarket:     "onboarding_market",
	StateQuiz0:                "quiz_0",
	StateQuiz1:                "quiz_1",
	StateQuiz2:                "quiz_2",
	StateQuiz3:                "quiz_3",
	StateQuiz4:                "quiz_4",
}

var tagStates = func() map[string]State {
	m := make(map[string]State, len(stateTags))
	for s, tag := range stateTags {
		m[tag] = s
	}
	return m
}()

func (s State) Tag() string {
	if tag, ok := stateTags[s]; ok {
		return tag
	}
	return "idle"
}

func (s State) String() string { return s.Tag() }

// ParseState maps a persisted tag back onto the enum; anything unknown is
// the initial state.
func ParseState(tag string) State {
	if s, ok := tagStates[strings.TrimSpace(tag)]; ok {
		return s
	}
	return StateIdle
}

// Quiz returns the question index when s is a quiz state.
func (s State) Quiz() (int, bool) {
	if s >= StateQuiz0 && s <= StateQuiz4 {
		return int(s - StateQuiz0), true
	}
	return 0, false
}

func (s State) onboarding() bool {
	return s >= StateOnboardingName && s <= StateOnboardingMarket
}

func (s State) setting() bool {
	return s >= StateSetTimeframe && s <= StateSetNews
}

// Class partitions classified input.
type Class int

const (
	ClassFree Class = iota
	ClassHome
	ClassBack
	ClassAnalyze
	ClassSymbol
	ClassCommand
)

func (c Class) String() string {
	switch c {
	case ClassHome:
		return "home"
	case ClassBack:
		return "back"
	case ClassAnalyze:
		return "analyze"
	case ClassSymbol:
		return "symbol"
	case ClassCommand:
		return "command"
	default:
		return "free"
	}
}

// Input is one classified inbound message.
type Input struct {
	Class   Class
	Raw     string // original text, trimmed
	Symbol  string // normalized, ClassSymbol only
	Command string // ClassCommand only
}

// Structured command names the transport may deliver.
const (
	CmdChooseSymbol = "choose_symbol"
	CmdTimeframe    = "timeframe"
	CmdStyle        = "style"
	CmdRisk         = "risk"
	CmdNews         = "news"
	CmdQuiz         = "quiz"
)

var commandStates = map[string]State{
	CmdChooseSymbol: StateChooseSymbol,
	CmdTimeframe:    StateSetTimeframe,
	CmdStyle:        StateSetStyle,
	CmdRisk:         StateSetRisk,
	CmdNews:         StateSetNews,
	CmdQuiz:         StateQuiz0,
}

// Command wraps a structured command as an Input.
func Command(name string) Input {
	return Input{Class: ClassCommand, Command: name}
}

// Classify buckets free text. Symbol recognition happens here so the machine
// only ever sees normalized symbols of a known asset class.
func Classify(text string) Input {
	raw := strings.TrimSpace(text)
	switch strings.ToLower(raw) {
	case "/start", "/home", "home", "menu", "🏠 home":
		return Input{Class: ClassHome, Raw: raw}
	case "/back", "back", "↩️ back":
		return Input{Class: ClassBack, Raw: raw}
	case "/analyze", "analyze", "go", "🔍 analyze":
		return Input{Class: ClassAnalyze, Raw: raw}
	}
	if sym := clockid.NormalizeSymbol(raw); market.ClassifySymbol(sym) != market.AssetUnknown {
		return Input{Class: ClassSymbol, Raw: raw, Symbol: sym}
	}
	return Input{Class: ClassFree, Raw: raw}
}

// backTargets is the explicit predecessor table for the back command. States
// absent here treat back like home.
var backTargets = map[State]State{
	StateAwaitPrompt: StateChooseSymbol,
	StateQuiz0:       StateIdle,
	StateQuiz1:       StateIdle,
	StateQuiz2:       StateIdle,
	StateQuiz3:       StateIdle,
	StateQuiz4:       StateIdle,
}

func backTarget(s State) State {
	if t, ok := backTargets[s]; ok {
		return t
	}
	// set_* states and everything else fall back to the summary at idle.
	return StateIdle
}

func (s State) guarded() bool {
	if s == StateChooseSymbol || s == StateAwaitPrompt {
		return true
	}
	_, quiz := s.Quiz()
	return quiz
}

func quizState(n int) (State, error) {
	if n < 0 || n > 4 {
		return StateIdle, fmt.Errorf("quiz index %d out of range", n)
	}
	return StateQuiz0 + State(n), nil
}
