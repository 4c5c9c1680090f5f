package textextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLExtractorStripsTags(t *testing.T) {
	text, ok := HTMLExtractor{}.Extract([]byte(`<html><body><p>hello <b>world</b></p></body></html>`))
	require.True(t, ok)
	assert.Equal(t, "hello world", text)
}

func TestHTMLExtractorSkipsScriptAndStyle(t *testing.T) {
	text, ok := HTMLExtractor{}.Extract([]byte(`<html><head><style>.x{color:red}</style></head>` +
		`<body><script>alert(1)</script><p>visible</p></body></html>`))
	require.True(t, ok)
	assert.Equal(t, "visible", text)
}

func TestHTMLExtractorEmptyInput(t *testing.T) {
	text, ok := HTMLExtractor{}.Extract([]byte(``))
	require.True(t, ok)
	assert.Equal(t, "", text)
}
