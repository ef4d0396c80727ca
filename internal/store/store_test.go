package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	return s
}

func TestGetMissingUserReturnsDefaults(t *testing.T) {
	s := openTestStore(t)

	u, err := s.Get(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "42", u.ID)
	require.Equal(t, "1h", u.Timeframe)
	require.Equal(t, "idle", u.ConvState)
	require.Zero(t, u.DailyUsed)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := NewUser("7")
	u.Name = "Lena"
	u.Contact = "+49123"
	u.ContactVerified = true
	u.SelectedSymbol = "BTCUSDT"
	u.DailyUsed = 3
	u.QuotaDate = "2024-01-01"
	require.NoError(t, s.Put(ctx, u))

	got, err := s.Get(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "Lena", got.Name)
	require.Equal(t, "BTCUSDT", got.SelectedSymbol)
	require.Equal(t, 3, got.DailyUsed)
	require.True(t, got.Onboarded())

	// Second Put is an update, not a duplicate insert.
	got.DailyUsed = 4
	require.NoError(t, s.Put(ctx, got))
	again, err := s.Get(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, 4, again.DailyUsed)
}

func TestChainOverride(t *testing.T) {
	require.Nil(t, ChainOverride(""))
	require.Nil(t, ChainOverride("  , ,"))
	require.Equal(t, []string{"anthropic", "openai"}, ChainOverride("anthropic, openai"))
}

func TestAppendQuizAnswer(t *testing.T) {
	u := NewUser("1")
	u.AppendQuizAnswer("a")
	u.AppendQuizAnswer("b")
	require.Equal(t, "a|b", u.QuizAnswers)
}
