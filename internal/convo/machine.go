package convo

import (
	"strings"

	"github.com/tradevisor/tradevisor/internal/market"
	"github.com/tradevisor/tradevisor/internal/store"
)

// Action tells the orchestrator what to do after a transition. The machine
// never touches the network or the quota gate itself.
type Action int

const (
	ActionShowHome Action = iota
	ActionAskSymbol
	ActionAskPrompt    // symbol recorded, waiting for a question or analyze
	ActionAnalyze      // run the analysis pipeline now
	ActionReprompt     // input meant nothing in this state, ask again
	ActionAskSetting   // prompt for a setting value
	ActionSettingSaved // setting value accepted and stored
	ActionAskOnboarding
	ActionAskQuiz
	ActionQuizComplete
)

func (a Action) String() string {
	switch a {
	case ActionShowHome:
		return "show_home"
	case ActionAskSymbol:
		return "ask_symbol"
	case ActionAskPrompt:
		return "ask_prompt"
	case ActionAnalyze:
		return "analyze"
	case ActionAskSetting:
		return "ask_setting"
	case ActionSettingSaved:
		return "setting_saved"
	case ActionAskOnboarding:
		return "ask_onboarding"
	case ActionAskQuiz:
		return "ask_quiz"
	case ActionQuizComplete:
		return "quiz_complete"
	default:
		return "reprompt"
	}
}

// Decision is the outcome of one Step.
type Decision struct {
	Action Action
	State  State
	// Question carries the setting or onboarding field name on the
	// Saved/Ask actions.
	Question string
}

// Step applies one classified input to the user's conversation state. The
// user record is mutated in place (state tag, selected symbol, profile and
// preference fields); persisting it is the caller's job.
func Step(u *store.User, in Input) Decision {
	s := ParseState(u.ConvState)

	switch in.Class {
	case ClassHome:
		// Home always resets, including the selected symbol.
		u.SelectedSymbol = ""
		return move(u, StateIdle, ActionShowHome, "")
	case ClassBack:
		t := backTarget(s)
		if t == StateIdle {
			u.SelectedSymbol = ""
		}
		return move(u, t, actionFor(t), "")
	case ClassCommand:
		return stepCommand(u, s, in)
	}

	if s.onboarding() {
		return stepOnboarding(u, s, in)
	}
	if q, ok := s.Quiz(); ok {
		return stepQuiz(u, q, in)
	}
	if s.setting() {
		return stepSetting(u, s, in)
	}

	// Symbol text is accepted from idle and choose_symbol alike, and also
	// switches the symbol mid-confirmation.
	if in.Class == ClassSymbol {
		if !u.Onboarded() {
			return enterOnboarding(u)
		}
		u.SelectedSymbol = in.Symbol
		return move(u, StateAwaitPrompt, ActionAskPrompt, "")
	}

	switch s {
	case StateAwaitPrompt:
		if in.Class == ClassAnalyze {
			// The pipeline runs to completion right after this; the stable
			// state is idle whatever the outcome.
			return move(u, StateIdle, ActionAnalyze, "")
		}
		// Only the analyze token spends quota. Anything else re-prompts.
		return Decision{Action: ActionReprompt, State: s}
	case StateChooseSymbol:
		return Decision{Action: ActionReprompt, State: s}
	default:
		return Decision{Action: ActionReprompt, State: StateIdle}
	}
}

func move(u *store.User, to State, a Action, q string) Decision {
	u.ConvState = to.Tag()
	return Decision{Action: a, State: to, Question: q}
}

func actionFor(s State) Action {
	switch s {
	case StateChooseSymbol:
		return ActionAskSymbol
	case StateAwaitPrompt:
		return ActionAskPrompt
	default:
		return ActionShowHome
	}
}

func stepCommand(u *store.User, s State, in Input) Decision {
	target, ok := commandStates[in.Command]
	if !ok {
		return Decision{Action: ActionReprompt, State: s}
	}
	if target.guarded() && !u.Onboarded() {
		return enterOnboarding(u)
	}
	if target == StateChooseSymbol {
		return move(u, target, ActionAskSymbol, "")
	}
	if _, quiz := target.Quiz(); quiz {
		u.QuizAnswers = ""
		return move(u, target, ActionAskQuiz, "")
	}
	return move(u, target, ActionAskSetting, settingField(target))
}

// BeginOnboarding routes the user to the first missing profile step. It is
// used by flows that bypass text classification, like photo uploads.
func BeginOnboarding(u *store.User) Decision { return enterOnboarding(u) }

// enterOnboarding routes to the first missing profile step.
func enterOnboarding(u *store.User) Decision {
	switch {
	case u.Name == "":
		return move(u, StateOnboardingName, ActionAskOnboarding, "name")
	case u.Contact == "" || !u.ContactVerified:
		return move(u, StateOnboardingContact, ActionAskOnboarding, "contact")
	case u.Experience == "":
		return move(u, StateOnboardingExperience, ActionAskOnboarding, "experience")
	default:
		return move(u, StateOnboardingMarket, ActionAskOnboarding, "market")
	}
}

func stepOnboarding(u *store.User, s State, in Input) Decision {
	if in.Raw == "" && in.Class != ClassSymbol {
		return Decision{Action: ActionReprompt, State: s}
	}
	switch s {
	case StateOnboardingName:
		u.Name = in.Raw
	case StateOnboardingContact:
		u.Contact = in.Raw
		u.ContactVerified = true
	case StateOnboardingExperience:
		u.Experience = strings.ToLower(in.Raw)
	case StateOnboardingMarket:
		u.PreferredMarket = strings.ToLower(in.Raw)
		return move(u, StateIdle, ActionShowHome, "")
	}
	return enterOnboarding(u)
}

func stepQuiz(u *store.User, q int, in Input) Decision {
	if in.Raw == "" {
		state, _ := quizState(q)
		return Decision{Action: ActionReprompt, State: state}
	}
	u.AppendQuizAnswer(in.Raw)
	if q == 4 {
		return move(u, StateIdle, ActionQuizComplete, "")
	}
	next, _ := quizState(q + 1)
	return move(u, next, ActionAskQuiz, "")
}

func stepSetting(u *store.User, s State, in Input) Decision {
	v := strings.ToLower(strings.TrimSpace(in.Raw))
	switch s {
	case StateSetTimeframe:
		tf, ok := market.ParseTimeframe(v)
		if !ok {
			return Decision{Action: ActionReprompt, State: s, Question: "timeframe"}
		}
		u.Timeframe = string(tf)
	case StateSetStyle:
		if v == "" {
			return Decision{Action: ActionReprompt, State: s, Question: "style"}
		}
		u.Style = v
	case StateSetRisk:
		switch v {
		case "low", "med", "high":
			u.Risk = v
		default:
			return Decision{Action: ActionReprompt, State: s, Question: "risk"}
		}
	case StateSetNews:
		switch v {
		case "on", "yes", "enable":
			u.NewsEnabled = true
		case "off", "no", "disable":
			u.NewsEnabled = false
		default:
			return Decision{Action: ActionReprompt, State: s, Question: "news"}
		}
	}
	return move(u, StateIdle, ActionSettingSaved, settingField(s))
}

func settingField(s State) string {
	switch s {
	case StateSetTimeframe:
		return "timeframe"
	case StateSetStyle:
		return "style"
	case StateSetRisk:
		return "risk"
	case StateSetNews:
		return "news"
	default:
		return ""
	}
}
