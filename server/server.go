// Package server exposes the document fetch proxy and a websocket analysis
// stream. The fetch endpoint exists so browser clients can read EUR-Lex and
// other EU institution documents without tripping over CORS; the domain
// allowlist keeps it from being an open proxy.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/lexwatch/lexwatch/internal/models"
	"github.com/lexwatch/lexwatch/internal/types"
	"github.com/lexwatch/lexwatch/pkg/extractor"
)

type Config struct {
	Port           int
	AllowedDomains []string
}

type Server struct {
	config    Config
	extractor *extractor.Extractor
	analyzer  types.Analyzer
	upgrader  websocket.Upgrader
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// documentResponse is the fetch-document wire contract consumed by the
// content extractor's proxy channel.
type documentResponse struct {
	Success        bool   `json:"success"`
	Content        string `json:"content,omitempty"`
	Type           string `json:"type,omitempty"`
	URL            string `json:"url,omitempty"`
	OriginalLength int    `json:"originalLength,omitempty"`
	Error          string `json:"error,omitempty"`
}

func New(config Config, ex *extractor.Extractor, analyzer types.Analyzer) *Server {
	return &Server{
		config:    config,
		extractor: ex,
		analyzer:  analyzer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Be careful with this in production
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fetch-document", s.handleFetchDocument)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Starting document fetch server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleFetchDocument(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSON(w, http.StatusBadRequest, documentResponse{
			Success: false,
			Error:   "Missing url parameter",
		})
		return
	}

	if !s.allowed(rawURL) {
		writeJSON(w, http.StatusForbidden, documentResponse{
			Success: false,
			Error:   "URL domain not allowed",
		})
		return
	}

	result := s.extractor.Extract(r.Context(), rawURL)
	if !result.Success {
		status := http.StatusBadGateway
		if isTimeout(result.Error) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, documentResponse{Success: false, Error: result.Error})
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Success:        true,
		Content:        result.Content,
		Type:           string(result.ContentType),
		URL:            rawURL,
		OriginalLength: result.OriginalLength,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("invalid message: %v", err))
			continue
		}

		s.handleMessage(r, conn, msg)
	}
}

// handleMessage serves one analyze request: fetch the document, stream the
// analysis back chunk by chunk, and finish with a done frame.
func (s *Server) handleMessage(r *http.Request, conn *websocket.Conn, msg Message) {
	if msg.Type != "analyze" {
		s.sendMessage(conn, "error", fmt.Sprintf("unknown message type: %s", msg.Type))
		return
	}

	rawURL := strings.TrimSpace(msg.Content)
	if rawURL == "" {
		s.sendMessage(conn, "error", "analyze requires a document URL")
		return
	}
	if !s.allowed(rawURL) {
		s.sendMessage(conn, "error", "URL domain not allowed")
		return
	}
	if s.analyzer == nil {
		s.sendMessage(conn, "error", "analysis is not configured")
		return
	}

	s.sendMessage(conn, "status", fmt.Sprintf("Fetching document: %s", rawURL))
	result := s.extractor.Extract(r.Context(), rawURL)
	if !result.Success {
		s.sendMessage(conn, "error", fmt.Sprintf("fetch failed: %s", result.Error))
		return
	}

	item := models.DocumentItem{URL: rawURL, Title: rawURL}
	stream, err := s.analyzer.AnalyzeStream(r.Context(), item, result.Content)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
		return
	}

	for chunk := range stream {
		if strings.HasPrefix(chunk, "Error:") {
			s.sendMessage(conn, "error", chunk)
			return
		}
		s.sendMessage(conn, "stream", chunk)
	}
	s.sendMessage(conn, "done", "")
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *Server) allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, domain := range s.config.AllowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func isTimeout(errText string) bool {
	lower := strings.ToLower(errText)
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
