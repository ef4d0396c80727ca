package store

import (
	"strings"
	"time"
)

// User is the one persisted record per user. Role is intentionally absent:
// it is derived from the allow-lists on every read.
type User struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Handle string

	// Profile gathered during onboarding.
	Name            string
	Contact         string
	ContactVerified bool
	Experience      string
	PreferredMarket string
	QuizAnswers     string // pipe-joined, one entry per quiz question

	// Preferences.
	Timeframe   string
	Style       string
	Risk        string
	NewsEnabled bool
	Tier        string

	// Quota counters. QuotaDate/QuotaMonth are calendar keys in the
	// configured fixed zone; the reset is lazy on first touch of a new day.
	QuotaDate   string
	DailyUsed   int
	QuotaMonth  string
	MonthlyUsed int

	// Conversation.
	ConvState      string
	SelectedSymbol string

	// Optional per-user provider chain overrides, comma-joined. Empty means
	// the system-wide order applies.
	TextChain   string
	VisionChain string
	PolishChain string
}

// NewUser returns the defaulted record used when the store has no row for id.
func NewUser(id string) *User {
	return &User{
		ID:        id,
		Timeframe: "1h",
		Risk:      "med",
		ConvState: "idle",
	}
}

// Onboarded reports whether the profile carries a name and a verified
// contact, the precondition for any quota-consuming conversation state.
func (u *User) Onboarded() bool {
	return u.Name != "" && u.Contact != "" && u.ContactVerified
}

// ChainOverride splits a stored comma-joined provider list. A nil result
// means "use the system-wide order".
func ChainOverride(stored string) []string {
	if strings.TrimSpace(stored) == "" {
		return nil
	}
	parts := strings.Split(stored, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// AppendQuizAnswer records one quiz answer in asked order.
func (u *User) AppendQuizAnswer(answer string) {
	if u.QuizAnswers == "" {
		u.QuizAnswers = answer
		return
	}
	u.QuizAnswers += "|" + answer
}
