package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ragcite/ragcite/internal/types"
	"github.com/ragcite/ragcite/pkg/extract"
	"github.com/ragcite/ragcite/pkg/rag"
)

const maxUploadBytes = 32 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Ingester and Answerer are the two pipeline entry points the server
// fronts; *rag.Ingester and *rag.Synthesizer satisfy them.
type Ingester interface {
	Ingest(ctx context.Context, text, source string) (rag.IngestResult, error)
}

type Answerer interface {
	Answer(ctx context.Context, query string) (rag.Answer, error)
}

type Config struct {
	Port        string
	AllowOrigin string
	Version     string
}

type Server struct {
	config   Config
	ingester Ingester
	answerer Answerer
	store    types.VectorStore
}

func New(config Config, ingester Ingester, answerer Answerer, vectorStore types.VectorStore) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.AllowOrigin == "" {
		config.AllowOrigin = "*"
	}
	if config.Version == "" {
		config.Version = "1.0.0"
	}

	return &Server{
		config:   config,
		ingester: ingester,
		answerer: answerer,
		store:    vectorStore,
	}
}

// Handler builds the route table wrapped in the CORS and cache middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/ingest-file", s.handleIngestFile)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.withHeaders(mux)
}

func (s *Server) ListenAndServe() error {
	log.Printf("Starting server on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

func (s *Server) withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.AllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if strings.HasSuffix(r.URL.Path, ".html") ||
			strings.HasSuffix(r.URL.Path, ".js") ||
			strings.HasSuffix(r.URL.Path, ".css") ||
			r.URL.Path == "/" {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		next.ServeHTTP(w, r)
	})
}

type ingestRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	result, err := s.ingester.Ingest(r.Context(), req.Text, req.Source)
	if err != nil {
		log.Printf("ingest failed for %q: %v", req.Source, err)
		writeError(w, http.StatusBadGateway, "ingestion failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "uploaded-file"
	}

	text, err := extract.FromFile(filename, data)
	if err != nil {
		log.Printf("text extraction failed for %q: %v", filename, err)
		writeError(w, http.StatusBadRequest, "failed to extract text")
		return
	}

	result, err := s.ingester.Ingest(r.Context(), text, filename)
	if err != nil {
		log.Printf("ingest failed for %q: %v", filename, err)
		writeError(w, http.StatusBadGateway, "ingestion failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		rag.IngestResult
		Filename string `json:"filename"`
	}{result, filename})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), req.Query)
	if err != nil {
		log.Printf("query failed: %v", err)
		writeError(w, http.StatusBadGateway, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.config.Version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	docs, chunks, err := s.store.Stats(r.Context())
	if err != nil {
		// Lenient by design: a broken store shows up as empty stats, not a
		// failed request.
		log.Printf("stats failed: %v", err)
		docs, chunks = 0, 0
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"docs":   docs,
		"chunks": chunks,
	})
}

type wsMessage struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
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

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(conn, wsMessage{Type: "error", Content: "invalid message"})
			continue
		}

		switch msg.Type {
		case "query":
			s.sendMessage(conn, wsMessage{Type: "status", Content: "searching"})

			answer, err := s.answerer.Answer(r.Context(), msg.Content)
			if err != nil {
				s.sendMessage(conn, wsMessage{Type: "error", Content: fmt.Sprintf("query failed: %v", err)})
				continue
			}

			s.sendMessage(conn, wsMessage{
				Type:    "answer",
				Content: answer.Text,
				Data:    answer.Citations,
			})
		default:
			s.sendMessage(conn, wsMessage{Type: "error", Content: "unknown message type"})
		}
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msg wsMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
