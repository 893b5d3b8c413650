package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Server is a mock assistant API for developing the TUI without a live
// backend. It speaks the same wire protocol: newline-delimited JSON frames
// with an SSE data prefix.
type Server struct {
	port  int
	token string

	mu     sync.Mutex
	issued map[string]bool
	seen   map[string]bool
}

// NewServer creates a mock server. When token is non-empty, chat requests
// must carry it (or a token issued by the refresh endpoint) as a bearer
// credential.
func NewServer(port int, token string) *Server {
	return &Server{
		port:   port,
		token:  token,
		issued: make(map[string]bool),
		seen:   make(map[string]bool),
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/v1/chat", s.chatHandler)
	mux.HandleFunc("/v1/auth/refresh", s.refreshHandler)

	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("Mock assistant server listening on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"model":  "gpt-4o",
	})
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.issued[token] = true
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if bearer == s.token {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued[bearer]
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	var req struct {
		Prompt         string  `json:"prompt"`
		ModelID        string  `json:"model_id"`
		ConversationID *string `json:"conversation_id"`
		Locale         string  `json:"locale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	convID := uuid.NewString()
	if req.ConversationID != nil && *req.ConversationID != "" {
		convID = *req.ConversationID
	}

	// A repeated prompt takes the cached path: instant answer, no tools.
	cacheKey := strings.ToLower(strings.TrimSpace(req.Prompt))
	s.mu.Lock()
	cached := s.seen[cacheKey]
	s.seen[cacheKey] = true
	s.mu.Unlock()

	sendFrame(w, flusher, map[string]any{
		"type":            "start",
		"model":           firstNonEmpty(req.ModelID, "gpt-4o"),
		"conversation_id": convID,
		"cached":          cached,
	})

	if !cached {
		s.simulateTools(w, flusher, req.Prompt)
	}

	s.streamAnswer(w, flusher, responseFor(req.Prompt, req.Locale), cached)

	sendFrame(w, flusher, map[string]any{
		"type":            "done",
		"conversation_id": convID,
	})
}

// simulateTools picks tool activity from prompt keywords so the TUI's live
// tool indicators can be exercised end to end.
func (s *Server) simulateTools(w http.ResponseWriter, flusher http.Flusher, prompt string) {
	lower := strings.ToLower(prompt)

	var tools []string
	if strings.Contains(lower, "price") || strings.Contains(lower, "quote") || hasTicker(lower) {
		tools = append(tools, "stock_quote")
	}
	if strings.Contains(lower, "news") || strings.Contains(lower, "market") {
		tools = append(tools, "market_news")
	}
	if strings.Contains(lower, "portfolio") || strings.Contains(lower, "holding") {
		tools = append(tools, "portfolio_analysis")
	}
	if len(tools) == 0 {
		return
	}

	sendFrame(w, flusher, map[string]any{
		"type":       "tool_calls",
		"tool_names": tools,
	})

	for _, tool := range tools {
		time.Sleep(350 * time.Millisecond)
		sendFrame(w, flusher, map[string]any{
			"type":      "tool_call",
			"tool_name": tool,
			"status":    "completed",
		})
	}
}

func (s *Server) streamAnswer(w http.ResponseWriter, flusher http.Flusher, answer string, cached bool) {
	if cached {
		// Cached answers arrive as one frame, no typing simulation.
		sendFrame(w, flusher, map[string]any{"type": "content", "delta": answer})
		return
	}

	const batch = 3
	runes := []rune(answer)
	for i := 0; i < len(runes); i += batch {
		end := i + batch
		if end > len(runes) {
			end = len(runes)
		}
		sendFrame(w, flusher, map[string]any{
			"type":  "content",
			"delta": string(runes[i:end]),
		})
		time.Sleep(15 * time.Millisecond)
	}
}

func responseFor(prompt, locale string) string {
	lower := strings.ToLower(prompt)

	if locale == "ja" {
		return "承知しました。AAPLの終値は233.10ドルで、前日比+1.2%です。出来高は平均をやや上回っています。他にお調べすることはありますか？"
	}

	switch {
	case strings.Contains(lower, "price") || strings.Contains(lower, "quote") || hasTicker(lower):
		return "AAPL closed at **$233.10** today, up 1.2% on the session. Volume ran slightly above the 30-day average.\n\nKey levels:\n\n- Support: $228\n- Resistance: $236\n\nWant me to pull recent news or compare against the sector?"
	case strings.Contains(lower, "news") || strings.Contains(lower, "market"):
		return "Here's what's moving markets today:\n\n1. **Fed minutes** pointed to a slower pace of cuts\n2. **Semiconductors** rallied on strong datacenter guidance\n3. **Energy** lagged as crude slipped below $78\n\nI can dig into any of these, or check how they affect your holdings."
	case strings.Contains(lower, "portfolio") || strings.Contains(lower, "holding"):
		return "Your portfolio is up **2.4%** this month. Tech remains your largest allocation at 41%, followed by healthcare at 22%.\n\nObservations:\n\n- Concentration in mega-cap tech is above your stated target\n- Cash position (6%) gives room to rebalance\n\nWould you like rebalancing suggestions?"
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		return "Hello! I'm your market assistant. I can:\n\n- Quote live stock prices\n- Summarize market news\n- Analyze your portfolio\n\nWhat would you like to look at?"
	default:
		return "I can help with that. Ask me about a ticker price, today's market news, or your portfolio, and I'll pull the live data."
	}
}

func hasTicker(lower string) bool {
	for _, t := range []string{"aapl", "msft", "googl", "amzn", "nvda", "tsla"} {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sendFrame(w http.ResponseWriter, flusher http.Flusher, data any) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n", jsonData)
	flusher.Flush()
}
