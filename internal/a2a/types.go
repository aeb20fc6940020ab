// Package a2a implements the agent-to-agent JSON-RPC 2.0 surface: envelope
// parsing, the message/send and execute methods, push notification delivery,
// and the discovery endpoints around them.
package a2a

import "encoding/json"

// JSON-RPC error codes.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Task states.
const (
	StateSubmitted = "submitted"
	StateWorking   = "working"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Message is one conversational turn.
type Message struct {
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	MessageID string `json:"messageId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Part is a message fragment: plain text or structured data.
type Part struct {
	Kind string          `json:"kind"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Artifact is a named structured output attached to a task result.
type Artifact struct {
	ArtifactID string `json:"artifactId,omitempty"`
	Name       string `json:"name"`
	Parts      []Part `json:"parts"`
}

// TaskStatus carries the terminal state and the agent's reply.
type TaskStatus struct {
	State     string   `json:"state"`
	Message   *Message `json:"message,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// TaskResult is the full outcome of one processed request.
type TaskResult struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts"`
	History   []Message  `json:"history"`
	Kind      string     `json:"kind"`
}

// JSONRPCRequest is the wire envelope. ID stays raw so string and numeric
// ids round-trip unchanged.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSONRPCResponse is the wire reply.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is the error member of a failed reply.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PushNotificationConfig names the callback target for non-blocking calls.
type PushNotificationConfig struct {
	URL string `json:"url"`
}

// MessageConfiguration tunes message/send delivery. Blocking defaults to
// true when absent.
type MessageConfiguration struct {
	Blocking               *bool                   `json:"blocking,omitempty"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig,omitempty"`
}

// NonBlocking reports whether the caller asked for the ack-then-callback
// flow and supplied somewhere to deliver the result.
func (c *MessageConfiguration) NonBlocking() bool {
	return c != nil &&
		c.Blocking != nil && !*c.Blocking &&
		c.PushNotificationConfig != nil && c.PushNotificationConfig.URL != ""
}

// messageSendParams is the params shape for message/send.
type messageSendParams struct {
	Message       Message               `json:"message"`
	Configuration *MessageConfiguration `json:"configuration,omitempty"`
}

// executeParams is the params shape for execute.
type executeParams struct {
	Messages  []Message `json:"messages"`
	ContextID string    `json:"contextId,omitempty"`
	TaskID    string    `json:"taskId,omitempty"`
}

// AgentCard is the discovery document at /.well-known/agent-card.
type AgentCard struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Skills       []Skill  `json:"skills"`
	ServiceURL   string   `json:"serviceUrl"`
}

// Skill is one advertised capability on the agent card.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}
