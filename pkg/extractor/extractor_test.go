package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexwatch/lexwatch/internal/models"
	"github.com/lexwatch/lexwatch/internal/types"
)

const articlePage = `
<html>
	<head><title>Test</title></head>
	<body>
		<nav>Site navigation with plenty of links and text</nav>
		<article>
			<h1>Regulation (EU) 2024/1689</h1>
			<p>This paragraph is comfortably longer than twenty characters and must survive.</p>
			<p>short</p>
			<ul>
				<li>A list item that is long enough to keep</li>
				<li>tiny</li>
			</ul>
			<table>
				<tr><th>Article</th><th>Subject</th></tr>
				<tr><td>5</td><td>Prohibited practices</td></tr>
			</table>
			<p>Closing paragraph with more than twenty characters in it as well.</p>
		</article>
	</body>
</html>`

func TestExtractStructuredHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage)
	}))
	defer server.Close()

	e := NewWithConfig(Config{})
	result := e.Extract(context.Background(), server.URL)

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, models.ContentTypeHTML, result.ContentType)
	assert.Equal(t, models.ChannelDirect, result.SourceChannel)

	assert.Contains(t, result.Content, "# Regulation (EU) 2024/1689")
	assert.Contains(t, result.Content, "must survive")
	assert.NotContains(t, result.Content, "short\n")
	assert.Contains(t, result.Content, "• A list item that is long enough to keep")
	assert.NotContains(t, result.Content, "tiny")
	assert.Contains(t, result.Content, "[TABLE]")
	assert.Contains(t, result.Content, "Article | Subject")
	assert.Contains(t, result.Content, "5 | Prohibited practices")
	assert.Contains(t, result.Content, "[/TABLE]")
	assert.NotContains(t, result.Content, "Site navigation")
}

func TestExtractFallbackOnThinMarkup(t *testing.T) {
	// No paragraph survives the structured pass, so the raw-stripped
	// fallback must kick in and still produce the visible text.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><script>var x = 1;</script><div>Visible shell text</div></body></html>`)
	}))
	defer server.Close()

	e := NewWithConfig(Config{})
	result := e.Extract(context.Background(), server.URL)

	require.True(t, result.Success)
	assert.Contains(t, result.Content, "Visible shell text")
	assert.NotContains(t, result.Content, "var x")
}

func TestExtractTruncation(t *testing.T) {
	long := strings.Repeat("All work and no play makes compliance a dull topic. ", 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><article><p>%s</p></article></body></html>`, long)
	}))
	defer server.Close()

	e := NewWithConfig(Config{MaxLength: 500})
	result := e.Extract(context.Background(), server.URL)

	require.True(t, result.Success)
	assert.LessOrEqual(t, len(result.Content), 500)
	assert.True(t, result.Truncated)
	assert.Greater(t, result.OriginalLength, len(result.Content))

	// Under the cap nothing is truncated.
	e = NewWithConfig(Config{MaxLength: 100000})
	result = e.Extract(context.Background(), server.URL)
	require.True(t, result.Success)
	assert.False(t, result.Truncated)
	assert.Equal(t, result.OriginalLength, len(result.Content))
}

func TestExtractMissingURL(t *testing.T) {
	e := NewWithConfig(Config{})
	result := e.Extract(context.Background(), "  ")
	assert.False(t, result.Success)
	assert.Equal(t, "missing url", result.Error)
}

func TestExtractViaProxy(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://eur-lex.europa.eu/doc", r.URL.Query().Get("url"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":        true,
			"content":        "# Extracted by proxy\nBody text from the proxy channel.",
			"type":           "html",
			"originalLength": 52,
		})
	}))
	defer proxy.Close()

	e := NewWithConfig(Config{ProxyURL: proxy.URL})
	result := e.Extract(context.Background(), "https://eur-lex.europa.eu/doc")

	require.True(t, result.Success)
	assert.Equal(t, models.ChannelProxy, result.SourceChannel)
	assert.Contains(t, result.Content, "Extracted by proxy")
}

func TestExtractProxyFailureFallsThroughToDirect(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage)
	}))
	defer direct.Close()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "upstream blocked"})
	}))
	defer proxy.Close()

	e := NewWithConfig(Config{ProxyURL: proxy.URL})
	result := e.Extract(context.Background(), direct.URL)

	require.True(t, result.Success)
	assert.Equal(t, models.ChannelDirect, result.SourceChannel)
}

func TestExtractProxyTimeoutFallsThroughToDirect(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage)
	}))
	defer direct.Close()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer proxy.Close()

	e := NewWithConfig(Config{ProxyURL: proxy.URL, Timeout: 100 * time.Millisecond})
	result := e.Extract(context.Background(), direct.URL)

	require.True(t, result.Success)
	assert.Equal(t, models.ChannelDirect, result.SourceChannel)
}

func TestExtractAllChannelsFail(t *testing.T) {
	e := NewWithConfig(Config{ProxyURL: "http://127.0.0.1:1", Timeout: time.Second})
	result := e.Extract(context.Background(), "http://127.0.0.1:1/doc")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "direct fetch failed")
}

type fakePDFDocument struct {
	pages [][]string
}

func (f fakePDFDocument) NumPages() int { return len(f.pages) }

func (f fakePDFDocument) PageTexts(page int) ([]string, error) {
	return f.pages[page-1], nil
}

type fakePDFReader struct {
	doc fakePDFDocument
	err error
}

func (f fakePDFReader) Open(data []byte) (types.PDFDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func TestExtractPDFByURLShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Deliberately wrong media type: the URL shape must win.
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("%PDF-1.4 payload"))
	}))
	defer server.Close()

	reader := fakePDFReader{doc: fakePDFDocument{pages: [][]string{
		{"Article 1", "Subject matter"},
		{},
		{"Article 2", "Scope"},
	}}}

	e := NewWithConfig(Config{PDFReader: reader})
	result := e.Extract(context.Background(), server.URL+"/celex.pdf")

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, models.ContentTypePDF, result.ContentType)
	assert.Contains(t, result.Content, "--- Page 1 ---\nArticle 1 Subject matter")
	assert.NotContains(t, result.Content, "--- Page 2 ---")
	assert.Contains(t, result.Content, "--- Page 3 ---\nArticle 2 Scope")
}

func TestExtractPDFByMediaType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 payload"))
	}))
	defer server.Close()

	reader := fakePDFReader{doc: fakePDFDocument{pages: [][]string{{"Only page"}}}}
	e := NewWithConfig(Config{PDFReader: reader})
	result := e.Extract(context.Background(), server.URL+"/document")

	require.True(t, result.Success)
	assert.Equal(t, models.ContentTypePDF, result.ContentType)
}

func TestExtractPDFPageCap(t *testing.T) {
	pages := make([][]string, 60)
	for i := range pages {
		pages[i] = []string{fmt.Sprintf("page %d text", i+1)}
	}

	text, err := extractPDFText(fakePDFReader{doc: fakePDFDocument{pages: pages}}, []byte("%PDF"))
	require.NoError(t, err)
	assert.Contains(t, text, "--- Page 50 ---")
	assert.NotContains(t, text, "--- Page 51 ---")
	assert.Contains(t, text, "[Document has 60 pages; showing first 50]")
}

func TestExtractPDFReaderFailureIsSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("not a pdf at all"))
	}))
	defer server.Close()

	e := NewWithConfig(Config{PDFReader: fakePDFReader{err: errors.New("corrupt header")}})
	result := e.Extract(context.Background(), server.URL+"/broken.pdf")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "content-extraction failed")
}

func TestExtractPDFDefaultReaderRejectsGarbage(t *testing.T) {
	_, err := extractPDFText(NewPDFReader(), []byte("definitely not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content-extraction failed")
}

func TestLooksLikePDF(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://eur-lex.europa.eu/doc.pdf", true},
		{"https://eur-lex.europa.eu/legal-content/EN/PDF/?uri=CELEX:32016R0679", true},
		{"https://eur-lex.europa.eu/resource/pdf/cellar-id", true},
		{"https://eur-lex.europa.eu/legal-content/EN/TXT/?uri=CELEX:32016R0679&format=PDF", true},
		{"https://eur-lex.europa.eu/legal-content/EN/TXT/", false},
		{"https://www.ecb.europa.eu/press/pr/date/2024/html/index.en.html", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, looksLikePDF(tt.url))
		})
	}
}
