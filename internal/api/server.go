package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/flowchat/internal/chat"
	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

// Chats is the conversation state the server exposes.
type Chats interface {
	ConversationID() string
	LoadConversationList(ctx context.Context) error
	LoadTranscript(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, text string) error
	ClearConversation(ctx context.Context) error
	Filter(query string) []chat.Summary
	Selected() (chat.Summary, bool)
	Messages() []transcript.Entry
	Err() string
}

type Server struct {
	router *chi.Mux
	port   int
	chats  Chats
	logger *slog.Logger
}

func NewServer(port int, chats Chats, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		chats:  chats,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/flowchat/status", s.status)

	router.Route("/api/v1/chats", func(r chi.Router) {
		r.Get("/", s.listChats)
		r.Delete("/", s.clearChat)
		r.Post("/messages", s.sendMessage)
		r.Get("/{id}", s.getChat)
	})

	router.Get("/", s.index)
	router.Post("/send", s.sendForm)
	router.Post("/clear", s.clearForm)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, for embedding the viewer in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":        "flowchat",
		"status":       "ok",
		"conversation": s.chats.ConversationID(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a chat error onto the HTTP status the API reports.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, chat.ErrNoConversation):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrRequestFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	msg := s.chats.Err()
	if msg == "" {
		msg = err.Error()
	}
	writeJSON(w, statusFor(err), map[string]string{"error": msg})
}
