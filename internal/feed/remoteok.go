package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_trends/internal/metrics"
)

const remoteOKAPI = "https://remoteok.com/api"

type remoteOKJob struct {
	Slug     string   `json:"slug"`
	ID       string   `json:"id"`
	Position string   `json:"position"`
	Company  string   `json:"company"`
	Tags     []string `json:"tags"`
	Location string   `json:"location"`
	Date     string   `json:"date"`
	URL      string   `json:"url"`
	Text     string   `json:"description"`
}

// FetchRemoteOK fetches the RemoteOK JSON API listing.
func FetchRemoteOK(ctx context.Context, client *http.Client) ([]RawPosting, error) {
	metrics.IncrRemoteOKRequests()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", remoteOKAPI, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := SendWithRetry(ctx, remoteOKRetry, func() (*http.Response, error) {
		return client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IncrFeedErrors()
		return nil, fmt.Errorf("RemoteOK API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, err
	}

	return ParseRemoteOK(body)
}

// ParseRemoteOK parses the RemoteOK JSON array, skipping element [0]
// (the "legal" metadata entry).
func ParseRemoteOK(body []byte) ([]RawPosting, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("remoteok parse error: %w", err)
	}
	if len(raw) <= 1 {
		return nil, nil
	}

	var postings []RawPosting
	for _, item := range raw[1:] {
		var j remoteOKJob
		if err := json.Unmarshal(item, &j); err != nil {
			continue
		}

		var posted time.Time
		if j.Date != "" {
			if t, err := time.Parse(time.RFC3339, j.Date); err == nil {
				posted = t
			}
		}

		jobURL := j.URL
		if jobURL == "" && j.Slug != "" {
			jobURL = "https://remoteok.com/remote-jobs/" + j.Slug
		}

		postings = append(postings, RawPosting{
			Source:      "remoteok",
			SourceID:    j.ID,
			Title:       j.Position,
			Company:     j.Company,
			Location:    j.Location,
			URL:         jobURL,
			Tags:        j.Tags,
			Description: j.Text,
			DatePosted:  posted,
			RemoteOnly:  true,
		})
	}

	return postings, nil
}
