// Package prompt assembles the final request payload for a text or vision
// provider from a base instruction, a style overlay, the computed market
// snapshot and the user's free-form question. Pure composition: no I/O, no
// clock.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tradevisor/tradevisor/internal/catalog"
	"github.com/tradevisor/tradevisor/internal/market"
)

// Instruction is the base template shared by every analysis.
type Instruction struct {
	System string
}

// Request is the provider-neutral payload: providers map System/User onto
// their own message shapes.
type Request struct {
	System string
	User   string
}

// DefaultInstruction is used when the deployment ships no custom template.
var DefaultInstruction = Instruction{
	System: "You are a trading assistant. Analyze the provided market data and answer the user's question. Structure the answer around trend, key levels and risk. Never promise returns.",
}

// Compose builds the request. A nil snapshot (vision-only flows) omits the
// market block.
func Compose(base Instruction, style catalog.Overlay, snap *market.Snapshot, userText string) Request {
	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(base.System))
	if v := strings.TrimSpace(style.Voice); v != "" {
		sys.WriteString("\n\nStyle: ")
		sys.WriteString(v)
	}
	if d := strings.TrimSpace(style.Disclaimer); d != "" {
		sys.WriteString("\nAlways close with: ")
		sys.WriteString(d)
	}

	var usr strings.Builder
	if snap != nil {
		usr.WriteString(renderSnapshot(snap))
		usr.WriteString("\n")
	}
	if q := strings.TrimSpace(userText); q != "" {
		usr.WriteString("Question: ")
		usr.WriteString(q)
	} else {
		usr.WriteString("Question: give a concise technical read of this market.")
	}

	return Request{System: sys.String(), User: usr.String()}
}

// renderSnapshot prints the market block deterministically so identical
// snapshots always produce identical payloads.
func renderSnapshot(s *market.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market snapshot for %s (%s):\n", s.Symbol, s.Timeframe)
	fmt.Fprintf(&b, "last=%s change=%+.2f%%\n", trimFloat(s.Last), s.ChangePct)
	fmt.Fprintf(&b, "sma20=%s sma50=%s\n", optFloat(s.SMA20), optFloat(s.SMA50))
	fmt.Fprintf(&b, "range50=[%s, %s]\n", trimFloat(s.RangeLow), trimFloat(s.RangeHigh))
	fmt.Fprintf(&b, "trend=%s\n", s.Trend)
	return b.String()
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}

func optFloat(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return trimFloat(*f)
}
