package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLExtractorBasicDocument(t *testing.T) {
	input := []byte(`<html>
<head><title>DNS Basics</title><style>body { color: red }</style></head>
<body>
<nav>Site navigation</nav>
<h1>What is DNS?</h1>
<p>The Domain Name System resolves names to addresses.</p>
<ul><li>Recursive resolvers</li><li>Authoritative servers</li></ul>
<script>alert("hi")</script>
</body></html>`)

	text, metadata, err := NewHTMLExtractor().Extract(context.Background(), input)
	require.NoError(t, err)

	assert.Contains(t, text, "# What is DNS?")
	assert.Contains(t, text, "The Domain Name System resolves names to addresses.")
	assert.Contains(t, text, "- Recursive resolvers")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "Site navigation")
	assert.NotContains(t, text, "color: red")

	assert.Equal(t, "DNS Basics", metadata["title"])
	assert.Equal(t, "html", metadata["type"])
}

func TestHTMLExtractorLinksAndHeadings(t *testing.T) {
	input := []byte(`<html><body>
<h2>References</h2>
<p>See <a href="https://example.org/rfc1035">RFC 1035</a> for details.</p>
</body></html>`)

	text, _, err := NewHTMLExtractor().Extract(context.Background(), input)
	require.NoError(t, err)

	assert.Contains(t, text, "## References")
	assert.Contains(t, text, "[RFC 1035](https://example.org/rfc1035)")
}

func TestHTMLExtractorMalformedInputStillExtracts(t *testing.T) {
	// html.Parse is lenient; truncated markup must not be an error.
	text, _, err := NewHTMLExtractor().Extract(context.Background(), []byte("<p>dangling"))
	require.NoError(t, err)
	assert.Contains(t, text, "dangling")
}
