// Local development stubs: an OpenAI-compatible chat endpoint and a
// Binance-style klines endpoint, so the bot can run end to end with no
// credentials. Point gateway_url and binance_base_url at this server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// chatCompletions echoes a canned analysis that quotes the last user
// message, which is enough to exercise the full chain path.
func chatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}

	last := ""
	for _, m := range req.Messages {
		if m.Role == "user" {
			// Content may be a plain string or a multipart array; for the
			// stub only the string form matters.
			var s string
			if err := json.Unmarshal(m.Content, &s); err == nil {
				last = s
			} else {
				last = "(multipart message)"
			}
		}
	}
	if len(last) > 120 {
		last = last[:120] + "..."
	}

	var resp chatResponse
	resp.ID = fmt.Sprintf("stub-%d", time.Now().UnixNano())
	resp.Object = "chat.completion"
	resp.Model = req.Model
	resp.Choices = make([]struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}, 1)
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = "Stub analysis. You asked: " + last +
		"\nMomentum looks mixed; wait for a close above the recent range before adding risk."
	resp.Choices[0].FinishReason = "stop"

	log.Printf("chat completion served model=%s", req.Model)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// klines serves a deterministic sine-walk series in Binance's row format:
// [openTime, open, high, low, close, volume, closeTime, ...].
func klines(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	interval := r.URL.Query().Get("interval")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 120
	}
	if symbol == "" {
		http.Error(w, `{"code":-1102,"msg":"Mandatory parameter 'symbol' was not sent."}`, http.StatusBadRequest)
		return
	}

	step := int64(3600000)
	switch interval {
	case "15m":
		step = 900000
	case "4h":
		step = 4 * 3600000
	case "1d":
		step = 24 * 3600000
	}

	// Seed the walk off the symbol so different instruments get different,
	// but stable, series.
	base := 100.0
	for _, ch := range symbol {
		base += float64(ch % 7)
	}

	end := time.Now().UnixMilli() / step * step
	rows := make([][]any, 0, limit)
	for i := 0; i < limit; i++ {
		openTime := end - int64(limit-i)*step
		px := base + 5*math.Sin(float64(i)/9)
		o := px
		c := px + 0.4*math.Cos(float64(i)/5)
		h := math.Max(o, c) + 0.6
		l := math.Min(o, c) - 0.6
		rows = append(rows, []any{
			openTime,
			fmt.Sprintf("%.4f", o),
			fmt.Sprintf("%.4f", h),
			fmt.Sprintf("%.4f", l),
			fmt.Sprintf("%.4f", c),
			fmt.Sprintf("%.2f", 1000+50*math.Sin(float64(i)/3)),
			openTime + step - 1,
		})
	}

	log.Printf("klines served symbol=%s interval=%s limit=%d", symbol, interval, limit)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "127.0.0.1:9090", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/v1/chat/completions", chatCompletions)
	mux.HandleFunc("/api/v3/klines", klines)

	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
