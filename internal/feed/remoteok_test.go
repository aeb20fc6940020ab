package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRemoteOK = `[
  {"legal": "API terms of service blurb"},
  {
    "slug": "remote-go-engineer-acme-12345",
    "id": "12345",
    "position": "Go Engineer",
    "company": "Acme",
    "tags": ["golang", "aws"],
    "location": "Worldwide",
    "date": "2026-08-20T09:00:00+00:00",
    "url": "https://remoteok.com/remote-jobs/12345",
    "description": "Ship Go services."
  },
  {
    "slug": "remote-designer-globex-67890",
    "id": "67890",
    "position": "Product Designer",
    "company": "Globex",
    "tags": ["figma"],
    "date": "bogus"
  }
]`

func TestParseRemoteOK(t *testing.T) {
	postings, err := ParseRemoteOK([]byte(sampleRemoteOK))
	require.NoError(t, err)
	require.Len(t, postings, 2)

	first := postings[0]
	assert.Equal(t, "remoteok", first.Source)
	assert.Equal(t, "12345", first.SourceID)
	assert.Equal(t, "Go Engineer", first.Title)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, []string{"golang", "aws"}, first.Tags)
	assert.Equal(t, "https://remoteok.com/remote-jobs/12345", first.URL)
	assert.True(t, first.RemoteOnly)
	want := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	assert.True(t, first.DatePosted.Equal(want))

	// Missing url falls back to the slug; bad dates are left zero for the
	// normalizer to default.
	second := postings[1]
	assert.Equal(t, "https://remoteok.com/remote-jobs/remote-designer-globex-67890", second.URL)
	assert.True(t, second.DatePosted.IsZero())
}

func TestParseRemoteOKLegalOnly(t *testing.T) {
	postings, err := ParseRemoteOK([]byte(`[{"legal": "terms"}]`))
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestParseRemoteOKInvalidJSON(t *testing.T) {
	_, err := ParseRemoteOK([]byte("<html>"))
	assert.Error(t, err)
}
