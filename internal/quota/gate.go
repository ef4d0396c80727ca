// Package quota enforces the per-user daily/monthly analysis ceilings.
//
// The gate mutates the in-memory user record only; persisting the updated
// counters is the caller's job. Consume must be called at most once per
// successful analysis, and never before the analysis succeeds.
package quota

import (
	"fmt"
	"time"

	"github.com/tradevisor/tradevisor/internal/clockid"
	"github.com/tradevisor/tradevisor/internal/observ"
	"github.com/tradevisor/tradevisor/internal/roles"
	"github.com/tradevisor/tradevisor/internal/store"
)

type Gate struct {
	dailyLimit   int
	monthlyLimit int // 0 disables the monthly ceiling
	tierLimits   map[string]int
	loc          *time.Location
	now          func() time.Time
}

type Option func(*Gate)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func New(dailyLimit, monthlyLimit int, tierLimits map[string]int, loc *time.Location, opts ...Option) *Gate {
	if dailyLimit <= 0 {
		dailyLimit = 50
	}
	if loc == nil {
		loc = time.UTC
	}
	g := &Gate{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		tierLimits:   tierLimits,
		loc:          loc,
		now:          time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// rollover applies the lazy day/month reset before any comparison or
// increment. It runs on every gate operation so no background job is needed.
func (g *Gate) rollover(u *store.User) {
	day := clockid.DayKey(g.now(), g.loc)
	if u.QuotaDate != day {
		if u.QuotaDate != "" {
			observ.Log("quota_day_rollover", map[string]any{
				"user": u.ID, "from": u.QuotaDate, "to": day, "used": u.DailyUsed,
			})
		}
		u.QuotaDate = day
		u.DailyUsed = 0
	}
	month := clockid.MonthKey(g.now(), g.loc)
	if u.QuotaMonth != month {
		u.QuotaMonth = month
		u.MonthlyUsed = 0
	}
}

func (g *Gate) limitFor(u *store.User) int {
	if l, ok := g.tierLimits[u.Tier]; ok && l > 0 {
		return l
	}
	return g.dailyLimit
}

// CanConsume reports whether one more analysis is allowed right now.
// Privileged roles always pass.
func (g *Gate) CanConsume(u *store.User, r roles.Role) bool {
	if r.Privileged() {
		return true
	}
	g.rollover(u)
	if u.DailyUsed >= g.limitFor(u) {
		return false
	}
	if g.monthlyLimit > 0 && u.MonthlyUsed >= g.monthlyLimit {
		return false
	}
	return true
}

// Consume charges one analysis. It never fails; privileged roles are never
// charged.
func (g *Gate) Consume(u *store.User, r roles.Role) {
	if r.Privileged() {
		return
	}
	g.rollover(u)
	u.DailyUsed++
	u.MonthlyUsed++
}

// Describe renders the human-readable quota line shown with every reply.
func (g *Gate) Describe(u *store.User, r roles.Role) string {
	if r.Privileged() {
		return "unlimited"
	}
	g.rollover(u)
	return fmt.Sprintf("%d/%d today", u.DailyUsed, g.limitFor(u))
}
