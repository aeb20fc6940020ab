package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go_trends/internal/metrics"
)

// UserAgent identifies the agent to the feed endpoints.
const UserAgent = "go_trends/1.0 (+https://github.com/anatolykoptev/go_trends)"

// WWRFeeds maps a category name to its We Work Remotely RSS feed.
var WWRFeeds = map[string]string{
	"programming": "https://weworkremotely.com/categories/remote-programming-jobs.rss",
	"full-stack":  "https://weworkremotely.com/categories/remote-full-stack-programming-jobs.rss",
	"front-end":   "https://weworkremotely.com/categories/remote-front-end-programming-jobs.rss",
	"devops":      "https://weworkremotely.com/categories/remote-devops-sysadmin-jobs.rss",
	"design":      "https://weworkremotely.com/categories/remote-design-jobs.rss",
}

type wwrRSS struct {
	XMLName xml.Name   `xml:"rss"`
	Channel wwrChannel `xml:"channel"`
}

type wwrChannel struct {
	Items []wwrItem `xml:"item"`
}

type wwrItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Category    string `xml:"category"`
	Type        string `xml:"type"`
	Region      string `xml:"region"`
	Skills      string `xml:"skills"`
	Description string `xml:"description"`
}

// FetchWWR fetches one We Work Remotely category feed and returns raw
// postings. WWR lists remote-only jobs, so postings are flagged RemoteOnly.
func FetchWWR(ctx context.Context, client *http.Client, category, feedURL string) ([]RawPosting, error) {
	metrics.IncrWWRRequests()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/xml, application/rss+xml")

	resp, err := SendWithRetry(ctx, wwrRetry, func() (*http.Response, error) {
		return client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IncrFeedErrors()
		return nil, fmt.Errorf("WWR RSS returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, err
	}

	return ParseWWR(body, category)
}

// ParseWWR parses a We Work Remotely RSS payload into raw postings.
func ParseWWR(body []byte, category string) ([]RawPosting, error) {
	var rss wwrRSS
	if err := xml.Unmarshal(body, &rss); err != nil {
		return nil, fmt.Errorf("wwr rss parse error: %w", err)
	}

	var postings []RawPosting
	for _, item := range rss.Channel.Items {
		title, company := parseWWRTitle(item.Title)

		var tags []string
		if item.Skills != "" {
			for _, s := range strings.Split(item.Skills, ",") {
				if s = strings.TrimSpace(s); s != "" {
					tags = append(tags, s)
				}
			}
		}

		var posted time.Time
		if item.PubDate != "" {
			if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
				posted = t
			} else if t, err := time.Parse(time.RFC1123, item.PubDate); err == nil {
				posted = t
			}
		}

		cat := category
		if cat == "" {
			cat = item.Category
		}

		postings = append(postings, RawPosting{
			Source:      "weworkremotely",
			SourceID:    wwrSourceID(item),
			Title:       title,
			Company:     company,
			Location:    item.Region,
			URL:         item.Link,
			Category:    cat,
			Tags:        tags,
			Description: item.Description,
			DatePosted:  posted,
			RemoteOnly:  true,
		})
	}

	return postings, nil
}

// wwrSourceID prefers the feed GUID, then the listing URL path.
// Empty means no native id; the normalizer hashes one.
func wwrSourceID(item wwrItem) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		if idx := strings.Index(item.Link, "/remote-jobs/"); idx >= 0 {
			return item.Link[idx+len("/remote-jobs/"):]
		}
	}
	return ""
}

// parseWWRTitle extracts company and title from the "Company: Title" format.
func parseWWRTitle(raw string) (title, company string) {
	if idx := strings.Index(raw, ": "); idx > 0 {
		return strings.TrimSpace(raw[idx+2:]), strings.TrimSpace(raw[:idx])
	}
	return raw, ""
}
