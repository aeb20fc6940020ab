// Package feed fetches raw job postings from the configured feed sources
// (We Work Remotely RSS, RemoteOK API), normalizes them into store.Job
// records, and runs the ingestion batches.
package feed

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_trends/internal/store"
)

// RawPosting is a posting as it came off the wire, before normalization.
type RawPosting struct {
	Source      string
	SourceID    string
	Title       string
	Company     string
	Location    string
	URL         string
	Category    string
	Tags        []string
	Description string
	DatePosted  time.Time
	RemoteOnly  bool
}

// MalformedPostingError marks a posting missing a required field.
// Callers skip the posting and log; it never aborts a batch.
type MalformedPostingError struct {
	Source string
	Field  string
}

func (e *MalformedPostingError) Error() string {
	return fmt.Sprintf("malformed posting from %s: missing %s", e.Source, e.Field)
}

// Normalize converts a raw posting into a canonical store.Job.
// Tags are lower-cased and deduplicated preserving first-occurrence order;
// free-text fields are HTML-stripped; remote-only sources default the
// location to "Remote".
func Normalize(raw RawPosting) (*store.Job, error) {
	position := strings.TrimSpace(StripHTML(raw.Title))
	company := strings.TrimSpace(StripHTML(raw.Company))
	if position == "" {
		return nil, &MalformedPostingError{Source: raw.Source, Field: "position"}
	}
	if company == "" {
		return nil, &MalformedPostingError{Source: raw.Source, Field: "company"}
	}

	location := strings.TrimSpace(StripHTML(raw.Location))
	if location == "" && raw.RemoteOnly {
		location = "Remote"
	}

	posted := raw.DatePosted
	if posted.IsZero() {
		posted = time.Now()
	}

	sourceID := strings.TrimSpace(raw.SourceID)
	if sourceID == "" {
		sourceID = stableID(position, company, posted)
	}

	return &store.Job{
		Source:     raw.Source,
		SourceID:   sourceID,
		Position:   position,
		Company:    company,
		Location:   location,
		Tags:       NormalizeTags(raw.Tags),
		URL:        strings.TrimSpace(raw.URL),
		Category:   strings.TrimSpace(raw.Category),
		Excerpt:    excerpt(raw.Description),
		DatePosted: posted.UTC(),
	}, nil
}

// NormalizeTags lower-cases, trims, and deduplicates tags, preserving the
// order of first occurrence.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// stableID derives a deterministic external id for sources without a native
// one: hash of title + company + posting date.
func stableID(position, company string, posted time.Time) string {
	h := sha256.Sum256([]byte(position + "|" + company + "|" + posted.UTC().Format("2006-01-02")))
	return fmt.Sprintf("%x", h[:12])
}

// StripHTML returns the text content of an HTML fragment. Plain text passes
// through unchanged.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	tok := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.Write(tok.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			switch string(name) {
			case "br", "p", "li", "div":
				sb.WriteByte('\n')
			}
		}
	}
}

const maxExcerptLen = 300

// excerpt produces a short summary from a description, which may arrive as
// HTML. HTML is converted to markdown; on conversion failure fall back to a
// plain text strip.
func excerpt(description string) string {
	text, err := htmltomarkdown.ConvertString(description)
	if err != nil {
		text = StripHTML(description)
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxExcerptLen {
		text = text[:maxExcerptLen] + "..."
	}
	return text
}
