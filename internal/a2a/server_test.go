package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_trends/internal/store"
)

type fakeProcessor struct {
	lastMessages []Message
	lastContext  string
	lastTask     string
	panics       bool
}

func (f *fakeProcessor) ProcessMessages(_ context.Context, messages []Message, contextID, taskID string) TaskResult {
	if f.panics {
		panic("boom")
	}
	f.lastMessages = messages
	f.lastContext = contextID
	f.lastTask = taskID
	if taskID == "" {
		taskID = "task-1"
	}
	if contextID == "" {
		contextID = "ctx-1"
	}
	return TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Status: TaskStatus{
			State:   StateCompleted,
			Message: &Message{Role: "agent", Parts: []Part{{Kind: "text", Text: "done"}}},
		},
		Artifacts: []Artifact{},
		History:   messages,
		Kind:      "task",
	}
}

type fakeHealthStore struct {
	store.Store
	total    int
	totalErr error
}

func (f *fakeHealthStore) TotalJobs(context.Context) (int, error)                 { return f.total, f.totalErr }
func (f *fakeHealthStore) CountSince(context.Context, time.Duration) (int, error) { return 3, f.totalErr }

func newTestServer(p Processor, st store.Store) *httptest.Server {
	return httptest.NewServer(NewServer(p, st, "http://localhost:8080").Handler())
}

func postRPC(t *testing.T, url string, body string) (*http.Response, JSONRPCResponse) {
	t.Helper()
	resp, err := http.Post(url+"/a2a/freelance", "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	var rpc JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	return resp, rpc
}

func TestMessageSendCompletes(t *testing.T) {
	proc := &fakeProcessor{}
	ts := newTestServer(proc, nil)
	defer ts.Close()

	resp, rpc := postRPC(t, ts.URL, `{
		"jsonrpc": "2.0", "id": "req-1", "method": "message/send",
		"params": {"message": {"role": "user", "parts": [{"kind": "text", "text": "show stats"}], "messageId": "m1"}}
	}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"req-1"`, string(rpc.ID))
	require.Nil(t, rpc.Error)

	require.Len(t, proc.lastMessages, 1)
	assert.Equal(t, "show stats", proc.lastMessages[0].Parts[0].Text)
}

func TestMessageSendNumericID(t *testing.T) {
	ts := newTestServer(&fakeProcessor{}, nil)
	defer ts.Close()

	_, rpc := postRPC(t, ts.URL, `{
		"jsonrpc": "2.0", "id": 42, "method": "message/send",
		"params": {"message": {"role": "user", "parts": [{"kind": "text", "text": "hi"}]}}
	}`)
	assert.Equal(t, "42", string(rpc.ID))
}

func TestInvalidEnvelope(t *testing.T) {
	ts := newTestServer(&fakeProcessor{}, nil)
	defer ts.Close()

	cases := []string{
		`{"jsonrpc": "1.0", "id": "x", "method": "message/send", "params": {}}`,
		`{"jsonrpc": "2.0", "method": "message/send", "params": {}}`,
		`not json at all`,
	}
	for _, body := range cases {
		resp, rpc := postRPC(t, ts.URL, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
		require.NotNil(t, rpc.Error, "body: %s", body)
		assert.Equal(t, CodeInvalidRequest, rpc.Error.Code)
	}
}

func TestUnknownMethod(t *testing.T) {
	ts := newTestServer(&fakeProcessor{}, nil)
	defer ts.Close()

	resp, rpc := postRPC(t, ts.URL, `{"jsonrpc": "2.0", "id": "x", "method": "tasks/cancel", "params": {}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, CodeMethodNotFound, rpc.Error.Code)
}

func TestProcessorPanicBecomesInternalError(t *testing.T) {
	ts := newTestServer(&fakeProcessor{panics: true}, nil)
	defer ts.Close()

	resp, rpc := postRPC(t, ts.URL, `{
		"jsonrpc": "2.0", "id": "x", "method": "execute",
		"params": {"messages": [{"role": "user", "parts": [{"kind": "text", "text": "hi"}]}]}
	}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, CodeInternalError, rpc.Error.Code)
}

func TestExecutePassesContextAndTask(t *testing.T) {
	proc := &fakeProcessor{}
	ts := newTestServer(proc, nil)
	defer ts.Close()

	_, rpc := postRPC(t, ts.URL, `{
		"jsonrpc": "2.0", "id": "x", "method": "execute",
		"params": {"messages": [{"role": "user", "parts": [{"kind": "text", "text": "hello"}]}], "contextId": "c9", "taskId": "t9"}
	}`)
	require.Nil(t, rpc.Error)
	assert.Equal(t, "c9", proc.lastContext)
	assert.Equal(t, "t9", proc.lastTask)
}

func TestDataPartHistoryExtraction(t *testing.T) {
	proc := &fakeProcessor{}
	ts := newTestServer(proc, nil)
	defer ts.Close()

	_, rpc := postRPC(t, ts.URL, `{
		"jsonrpc": "2.0", "id": "x", "method": "message/send",
		"params": {"message": {"role": "user", "parts": [
			{"kind": "data", "data": [
				{"text": "older message"},
				{"text": "<p>show <b>trending</b> skills</p>"},
				{"text": "agent reply"}
			]}
		]}}
	}`)
	require.Nil(t, rpc.Error)
	require.Len(t, proc.lastMessages, 1)
	assert.Equal(t, "show trending skills", proc.lastMessages[0].Parts[0].Text)
}

func TestNonBlockingAcksAndPushes(t *testing.T) {
	delivered := make(chan TaskResult, 1)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var result TaskResult
		if err := json.NewDecoder(r.Body).Decode(&result); err == nil {
			delivered <- result
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	ts := newTestServer(&fakeProcessor{}, nil)
	defer ts.Close()

	_, rpc := postRPC(t, ts.URL, `{
		"jsonrpc": "2.0", "id": "x", "method": "message/send",
		"params": {
			"message": {"role": "user", "parts": [{"kind": "text", "text": "analyze trends"}]},
			"configuration": {"blocking": false, "pushNotificationConfig": {"url": "`+webhook.URL+`"}}
		}
	}`)
	require.Nil(t, rpc.Error)

	ackJSON, err := json.Marshal(rpc.Result)
	require.NoError(t, err)
	var ack TaskResult
	require.NoError(t, json.Unmarshal(ackJSON, &ack))
	assert.Equal(t, StateSubmitted, ack.Status.State)
	assert.NotEmpty(t, ack.ID)

	select {
	case result := <-delivered:
		assert.Equal(t, StateCompleted, result.Status.State)
		assert.Equal(t, ack.ID, result.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was never delivered")
	}
}

func TestPushRetriesFlakyWebhook(t *testing.T) {
	var hits atomic.Int64
	delivered := make(chan struct{}, 1)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		delivered <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	s := NewServer(&fakeProcessor{}, nil, "http://test/a2a/freelance")
	s.pushResult(context.Background(), webhook.URL, TaskResult{ID: "t1"})

	select {
	case <-delivered:
		assert.Equal(t, int64(2), hits.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("retry never reached the webhook")
	}
}

func TestHealthReportsCounts(t *testing.T) {
	ts := newTestServer(&fakeProcessor{}, &fakeHealthStore{total: 120})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Status   string `json:"status"`
		Database struct {
			Connected bool `json:"connected"`
			TotalJobs int  `json:"total_jobs"`
		} `json:"database"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Database.Connected)
	assert.Equal(t, 120, body.Database.TotalJobs)
}

func TestHealthDegradesOnStoreError(t *testing.T) {
	ts := newTestServer(&fakeProcessor{}, &fakeHealthStore{totalErr: assert.AnError})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Database struct {
			Connected bool `json:"connected"`
			TotalJobs int  `json:"total_jobs"`
		} `json:"database"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Database.Connected)
	assert.Equal(t, -1, body.Database.TotalJobs)
}

func TestAgentCard(t *testing.T) {
	ts := newTestServer(&fakeProcessor{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/.well-known/agent-card")
	require.NoError(t, err)
	defer resp.Body.Close()

	var card AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, AgentName, card.Name)
	assert.NotEmpty(t, card.Skills)
}

func TestRPCRejectsGet(t *testing.T) {
	ts := newTestServer(&fakeProcessor{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/a2a/freelance")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
