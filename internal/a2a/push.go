package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const pushAttempts = 3

// pushResult delivers a finished task to the caller's callback URL. Delivery
// is best effort: failed attempts are retried after a short pause, and a
// final failure is logged, never surfaced to the original caller.
func (s *Server) pushResult(ctx context.Context, callbackURL string, result TaskResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("push: payload marshal failed", slog.Any("error", err))
		return
	}

	client := &http.Client{Timeout: s.pushTimeout}
	for attempt := 1; ; attempt++ {
		err = deliver(ctx, client, callbackURL, payload)
		if err == nil {
			slog.Info("push: result delivered",
				slog.String("url", callbackURL),
				slog.String("task_id", result.ID),
				slog.String("state", result.Status.State),
			)
			return
		}
		if attempt >= pushAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
		}
	}

	slog.Error("push: delivery failed",
		slog.String("url", callbackURL),
		slog.String("task_id", result.ID),
		slog.Any("error", err),
	)
}

func deliver(ctx context.Context, client *http.Client, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("callback returned %d: %s", resp.StatusCode, body)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return nil
}
