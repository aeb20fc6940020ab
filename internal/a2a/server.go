package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_trends/internal/feed"
	"github.com/anatolykoptev/go_trends/internal/metrics"
	"github.com/anatolykoptev/go_trends/internal/store"
)

// AgentName and Version identify the service on the card and health checks.
const (
	AgentName = "Freelance Trends Agent"
	Version   = "1.0.0"
)

// Processor turns a batch of messages into a task result. Implementations
// must not panic their errors outward: a failed run is a failed TaskResult.
type Processor interface {
	ProcessMessages(ctx context.Context, messages []Message, contextID, taskID string) TaskResult
}

// Server is the HTTP surface of the agent.
type Server struct {
	processor   Processor
	store       store.Store
	card        AgentCard
	pushTimeout time.Duration
}

// NewServer wires the processor and store into the HTTP surface.
// serviceURL is the externally visible base URL for the agent card.
func NewServer(p Processor, st store.Store, serviceURL string) *Server {
	return &Server{
		processor:   p,
		store:       st,
		pushTimeout: 10 * time.Second,
		card: AgentCard{
			Name:        AgentName,
			Description: "AI agent tracking freelancing jobs and identifying emerging trends",
			Version:     Version,
			Capabilities: []string{
				"trend_analysis",
				"job_search",
				"intent_parsing",
				"skill_comparison",
			},
			Skills: []Skill{
				{Name: "classify_intent", Description: "Route natural language queries to market operations", Type: "llm_powered"},
				{Name: "analyze_trends", Description: "Compute skill and role trends from stored job postings", Type: "data_processing"},
				{Name: "scrape_jobs", Description: "Fetch remote job postings from RSS and API sources", Type: "api_integration"},
				{Name: "answer_question", Description: "Answer free-form job market questions over stored data", Type: "llm_powered"},
			},
			ServiceURL: serviceURL,
		},
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/a2a/freelance", s.handleRPC)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/.well-known/agent-card", s.handleAgentCard)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// handleRPC is the JSON-RPC endpoint. Envelope violations are -32600,
// unknown methods -32601, anything escaping the processor -32603.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.IncrA2ARequests()

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, CodeInvalidRequest, "Invalid Request: body is not valid JSON", nil)
		return
	}
	if req.JSONRPC != "2.0" || len(req.ID) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, CodeInvalidRequest, "Invalid Request: jsonrpc must be '2.0' and id is required", nil)
		return
	}

	slog.Info("a2a request", slog.String("method", req.Method), slog.String("id", string(req.ID)))

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("a2a handler panic", slog.Any("panic", rec))
			writeError(w, http.StatusInternalServerError, req.ID, CodeInternalError, "Internal error", map[string]any{"details": fmt.Sprint(rec)})
		}
	}()

	switch req.Method {
	case "message/send":
		s.handleMessageSend(w, r, req)
	case "execute":
		s.handleExecute(w, r, req)
	default:
		writeError(w, http.StatusOK, req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params messageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, CodeInvalidRequest, "Invalid Request: malformed params", map[string]any{"details": err.Error()})
		return
	}

	userText := extractUserText(params.Message)
	msg := Message{
		Kind:      params.Message.Kind,
		Role:      params.Message.Role,
		Parts:     []Part{{Kind: "text", Text: userText}},
		MessageID: params.Message.MessageID,
	}
	slog.Info("processing message/send", slog.String("text", userText))

	if params.Configuration.NonBlocking() {
		s.sendNonBlocking(w, req, msg, params.Configuration.PushNotificationConfig.URL)
		return
	}

	result := s.processor.ProcessMessages(r.Context(), []Message{msg}, "", "")
	writeResult(w, req.ID, result)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params executeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, CodeInvalidRequest, "Invalid Request: malformed params", map[string]any{"details": err.Error()})
		return
	}
	slog.Info("processing execute",
		slog.Int("messages", len(params.Messages)),
		slog.String("context_id", params.ContextID),
	)
	result := s.processor.ProcessMessages(r.Context(), params.Messages, params.ContextID, params.TaskID)
	writeResult(w, req.ID, result)
}

// sendNonBlocking acknowledges immediately with a submitted task and
// delivers the real result to the callback URL once processing finishes.
func (s *Server) sendNonBlocking(w http.ResponseWriter, req JSONRPCRequest, msg Message, callbackURL string) {
	contextID := uuid.NewString()
	taskID := uuid.NewString()

	ack := TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Status: TaskStatus{
			State:     StateSubmitted,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Artifacts: []Artifact{},
		History:   []Message{msg},
		Kind:      "task",
	}
	writeResult(w, req.ID, ack)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result := s.processor.ProcessMessages(ctx, []Message{msg}, contextID, taskID)
		s.pushResult(ctx, callbackURL, result)
	}()
}

// extractUserText pulls the utterance out of a message/send message. When a
// data part carries the prior conversation, the second-to-last entry holds
// the user's text, possibly as HTML. Otherwise the first text part wins.
func extractUserText(msg Message) string {
	for _, part := range msg.Parts {
		if part.Kind != "data" || len(part.Data) == 0 {
			continue
		}
		var history []struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part.Data, &history); err != nil {
			continue
		}
		if len(history) >= 2 {
			if text := feed.StripHTML(history[len(history)-2].Text); text != "" {
				return text
			}
		}
	}
	for _, part := range msg.Parts {
		if part.Kind == "text" {
			return part.Text
		}
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	totalJobs, jobs24h := -1, -1
	if s.store != nil {
		if n, err := s.store.TotalJobs(r.Context()); err == nil {
			totalJobs = n
		} else {
			slog.Error("health: database check failed", slog.Any("error", err))
		}
		if n, err := s.store.CountSince(r.Context(), 24*time.Hour); err == nil {
			jobs24h = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"agent":   "freelance-trends",
		"version": Version,
		"database": map[string]any{
			"connected":     totalJobs >= 0,
			"total_jobs":    totalJobs,
			"jobs_last_24h": jobs24h,
		},
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        AgentName,
		"version":     Version,
		"description": "AI agent tracking freelancing jobs and identifying emerging trends",
		"endpoints": map[string]string{
			"a2a":     "/a2a/freelance",
			"health":  "/health",
			"metrics": "/metrics",
		},
		"capabilities": []string{
			"Track latest jobs",
			"Analyze trending skills and technologies",
			"Identify popular job roles",
			"Provide job search and statistics",
			"A2A protocol support",
		},
	})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, metrics.Format())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", slog.Any("error", err))
	}
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeJSON(w, http.StatusOK, JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data any) {
	writeJSON(w, status, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
	})
}
