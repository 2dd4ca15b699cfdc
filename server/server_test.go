package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexwatch/lexwatch/internal/models"
	"github.com/lexwatch/lexwatch/pkg/extractor"
)

const docPage = `<html><body><article>
<h1>Regulation (EU) 2024/1689</h1>
<p>This regulation lays down harmonised rules on artificial intelligence for the internal market.</p>
<p>Providers of high-risk systems shall establish a quality management system before placing them on the market.</p>
</article></body></html>`

type stubAnalyzer struct {
	chunks []string
	err    error
}

func (a stubAnalyzer) Analyze(ctx context.Context, item models.DocumentItem, contextText string) (string, error) {
	return strings.Join(a.chunks, ""), a.err
}

func (a stubAnalyzer) AnalyzeStream(ctx context.Context, item models.DocumentItem, contextText string) (<-chan string, error) {
	if a.err != nil {
		return nil, a.err
	}
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, c := range a.chunks {
			ch <- c
		}
	}()
	return ch, nil
}

func newTestServer(t *testing.T, analyzer stubAnalyzer, upstreamStatus int) (*httptest.Server, *httptest.Server) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if upstreamStatus != http.StatusOK {
			w.WriteHeader(upstreamStatus)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(docPage))
	}))
	t.Cleanup(upstream.Close)

	ex := extractor.NewWithConfig(extractor.Config{Timeout: 2 * time.Second})
	s := New(Config{AllowedDomains: []string{"127.0.0.1"}}, ex, analyzer)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, upstream
}

func fetchDocument(t *testing.T, srv *httptest.Server, target string) (int, documentResponse) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/fetch-document?url=" + target)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body documentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestFetchDocumentSuccess(t *testing.T) {
	srv, upstream := newTestServer(t, stubAnalyzer{}, http.StatusOK)

	status, body := fetchDocument(t, srv, upstream.URL+"/doc")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, "html", body.Type)
	assert.Contains(t, body.Content, "harmonised rules on artificial intelligence")
	assert.Greater(t, body.OriginalLength, 0)
	assert.Empty(t, body.Error)
}

func TestFetchDocumentMissingURL(t *testing.T) {
	srv, _ := newTestServer(t, stubAnalyzer{}, http.StatusOK)

	resp, err := http.Get(srv.URL + "/api/fetch-document")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body documentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, body.Success)
	assert.Equal(t, "Missing url parameter", body.Error)
}

func TestFetchDocumentDisallowedDomain(t *testing.T) {
	srv, _ := newTestServer(t, stubAnalyzer{}, http.StatusOK)

	status, body := fetchDocument(t, srv, "https://malicious.example/doc")
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, body.Success)
	assert.Equal(t, "URL domain not allowed", body.Error)
}

func TestFetchDocumentUpstreamFailure(t *testing.T) {
	srv, upstream := newTestServer(t, stubAnalyzer{}, http.StatusInternalServerError)

	status, body := fetchDocument(t, srv, upstream.URL+"/doc")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Error)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, stubAnalyzer{}, http.StatusOK)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketAnalyzeStream(t *testing.T) {
	analyzer := stubAnalyzer{chunks: []string{"The regulation ", "introduces new obligations."}}
	srv, upstream := newTestServer(t, analyzer, http.StatusOK)

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "analyze", Content: upstream.URL + "/doc"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "status", frame.Type)

	var streamed strings.Builder
	for {
		frame = readFrame(t, conn)
		if frame.Type != "stream" {
			break
		}
		streamed.WriteString(frame.Content)
	}
	assert.Equal(t, "done", frame.Type)
	assert.Equal(t, "The regulation introduces new obligations.", streamed.String())
}

func TestWebSocketUnknownType(t *testing.T) {
	srv, _ := newTestServer(t, stubAnalyzer{}, http.StatusOK)

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Content, "unknown message type")
}

func TestWebSocketDisallowedURL(t *testing.T) {
	srv, _ := newTestServer(t, stubAnalyzer{}, http.StatusOK)

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "analyze", Content: "https://malicious.example/doc"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "URL domain not allowed", frame.Content)
}
