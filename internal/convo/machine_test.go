package convo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradevisor/tradevisor/internal/store"
)

func onboardedUser() *store.User {
	u := store.NewUser("u1")
	u.Name = "Alice"
	u.Contact = "+100200300"
	u.ContactVerified = true
	return u
}

func TestParseStateUnknownTag(t *testing.T) {
	cases := []struct {
		tag  string
		want State
	}{
		{"idle", StateIdle},
		{"await_prompt", StateAwaitPrompt},
		{"quiz_3", StateQuiz3},
		{"", StateIdle},
		{"garbage", StateIdle},
		{"quiz_9", StateIdle},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ParseState(c.tag), "tag %q", c.tag)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want Class
	}{
		{"/start", ClassHome},
		{"Home", ClassHome},
		{"back", ClassBack},
		{"Analyze", ClassAnalyze},
		{"btcusdt", ClassSymbol},
		{"EURUSD", ClassSymbol},
		{"xau/usd", ClassSymbol},
		{"what about resistance?", ClassFree},
		{"", ClassFree},
	}
	for _, c := range cases {
		got := Classify(c.text)
		require.Equal(t, c.want, got.Class, "text %q", c.text)
	}
	require.Equal(t, "BTCUSDT", Classify("btcusdt").Symbol)
}

func TestSymbolFromIdleGoesToAwaitPrompt(t *testing.T) {
	u := onboardedUser()
	d := Step(u, Classify("btcusdt"))
	require.Equal(t, ActionAskPrompt, d.Action)
	require.Equal(t, StateAwaitPrompt, d.State)
	require.Equal(t, "BTCUSDT", u.SelectedSymbol)
	require.Equal(t, "await_prompt", u.ConvState)
}

func TestHomeResetsStateAndSymbol(t *testing.T) {
	u := onboardedUser()
	Step(u, Classify("btcusdt"))
	require.Equal(t, "BTCUSDT", u.SelectedSymbol)

	d := Step(u, Classify("home"))
	require.Equal(t, ActionShowHome, d.Action)
	require.Equal(t, StateIdle, d.State)
	require.Empty(t, u.SelectedSymbol)
}

func TestAwaitPromptRepromptsOnNothing(t *testing.T) {
	u := onboardedUser()
	Step(u, Classify("ethusdt"))

	d := Step(u, Input{Class: ClassFree, Raw: ""})
	require.Equal(t, ActionReprompt, d.Action)
	require.Equal(t, StateAwaitPrompt, d.State)
	require.Equal(t, "await_prompt", u.ConvState)
}

func TestAwaitPromptAnalyze(t *testing.T) {
	u := onboardedUser()
	Step(u, Classify("ethusdt"))

	d := Step(u, Classify("analyze"))
	require.Equal(t, ActionAnalyze, d.Action)
	require.Equal(t, StateIdle, d.State)
	require.Empty(t, d.Question)
}

func TestAwaitPromptFreeTextReprompts(t *testing.T) {
	u := onboardedUser()
	Step(u, Classify("ethusdt"))

	d := Step(u, Classify("is this a breakout?"))
	require.Equal(t, ActionReprompt, d.Action)
	require.Equal(t, StateAwaitPrompt, d.State)
	require.Equal(t, "await_prompt", u.ConvState)
	require.Equal(t, "ETHUSDT", u.SelectedSymbol)
}

func TestAwaitPromptSymbolSwitch(t *testing.T) {
	u := onboardedUser()
	Step(u, Classify("ethusdt"))
	d := Step(u, Classify("btcusdt"))
	require.Equal(t, ActionAskPrompt, d.Action)
	require.Equal(t, "BTCUSDT", u.SelectedSymbol)
}

func TestBackFromAwaitPrompt(t *testing.T) {
	u := onboardedUser()
	Step(u, Classify("ethusdt"))

	d := Step(u, Classify("back"))
	require.Equal(t, StateChooseSymbol, d.State)
	require.Equal(t, ActionAskSymbol, d.Action)
}

func TestBackFromQuizGoesHome(t *testing.T) {
	u := onboardedUser()
	Step(u, Command(CmdQuiz))
	Step(u, Classify("mostly swing trades"))
	require.Equal(t, "quiz_1", u.ConvState)

	d := Step(u, Classify("back"))
	require.Equal(t, StateIdle, d.State)
}

func TestOnboardingGuard(t *testing.T) {
	u := store.NewUser("fresh")
	d := Step(u, Classify("btcusdt"))
	require.Equal(t, ActionAskOnboarding, d.Action)
	require.Equal(t, StateOnboardingName, d.State)
	require.Empty(t, u.SelectedSymbol)

	d = Step(u, Command(CmdQuiz))
	require.Equal(t, ActionAskOnboarding, d.Action)
}

func TestOnboardingSequence(t *testing.T) {
	u := store.NewUser("fresh")
	Step(u, Classify("btcusdt"))

	d := Step(u, Classify("Alice"))
	require.Equal(t, StateOnboardingContact, d.State)
	require.Equal(t, "Alice", u.Name)

	d = Step(u, Classify("+100200300"))
	require.Equal(t, StateOnboardingExperience, d.State)
	require.True(t, u.ContactVerified)

	d = Step(u, Classify("intermediate"))
	require.Equal(t, StateOnboardingMarket, d.State)

	d = Step(u, Classify("Crypto"))
	require.Equal(t, StateIdle, d.State)
	require.Equal(t, ActionShowHome, d.Action)
	require.Equal(t, "crypto", u.PreferredMarket)
	require.True(t, u.Onboarded())
}

func TestQuizFlow(t *testing.T) {
	u := onboardedUser()
	d := Step(u, Command(CmdQuiz))
	require.Equal(t, ActionAskQuiz, d.Action)
	require.Equal(t, StateQuiz0, d.State)

	answers := []string{"a", "b", "c", "d"}
	for _, a := range answers {
		d = Step(u, Classify(a))
		require.Equal(t, ActionAskQuiz, d.Action)
	}
	d = Step(u, Classify("e"))
	require.Equal(t, ActionQuizComplete, d.Action)
	require.Equal(t, StateIdle, d.State)
	require.Equal(t, "a|b|c|d|e", u.QuizAnswers)
}

func TestQuizRestartClearsAnswers(t *testing.T) {
	u := onboardedUser()
	u.QuizAnswers = "old|answers"
	Step(u, Command(CmdQuiz))
	require.Empty(t, u.QuizAnswers)
}

func TestSettings(t *testing.T) {
	u := onboardedUser()

	Step(u, Command(CmdTimeframe))
	d := Step(u, Classify("4h"))
	require.Equal(t, ActionSettingSaved, d.Action)
	require.Equal(t, "4h", u.Timeframe)

	Step(u, Command(CmdTimeframe))
	d = Step(u, Classify("7h"))
	require.Equal(t, ActionReprompt, d.Action)
	require.Equal(t, StateSetTimeframe, d.State)
	require.Equal(t, "4h", u.Timeframe)

	Step(u, Command(CmdRisk))
	d = Step(u, Classify("HIGH"))
	require.Equal(t, ActionSettingSaved, d.Action)
	require.Equal(t, "high", u.Risk)

	Step(u, Command(CmdNews))
	d = Step(u, Classify("on"))
	require.Equal(t, ActionSettingSaved, d.Action)
	require.True(t, u.NewsEnabled)

	Step(u, Command(CmdStyle))
	d = Step(u, Classify("Mentor"))
	require.Equal(t, ActionSettingSaved, d.Action)
	require.Equal(t, "mentor", u.Style)
	require.Equal(t, "idle", u.ConvState)
}

func TestUnknownCommandReprompts(t *testing.T) {
	u := onboardedUser()
	d := Step(u, Command("frobnicate"))
	require.Equal(t, ActionReprompt, d.Action)
	require.Equal(t, "idle", u.ConvState)
}
