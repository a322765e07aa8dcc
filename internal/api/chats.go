package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/flowchat/internal/chat"
	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

type SummaryResponse struct {
	ID           string `json:"id"`
	MessageCount int    `json:"message_count"`
}

type ListResponse struct {
	Chats    []SummaryResponse `json:"chats"`
	Selected string            `json:"selected,omitempty"`
}

type ChatResponse struct {
	ID           string             `json:"id"`
	MessageCount int                `json:"message_count"`
	Messages     []transcript.Entry `json:"messages"`
}

type SendRequest struct {
	Text string `json:"text"`
}

func chatResponse(s chat.Summary) ChatResponse {
	msgs := s.Transcript
	if msgs == nil {
		msgs = []transcript.Entry{}
	}
	return ChatResponse{ID: s.ID, MessageCount: s.MessageCount, Messages: msgs}
}

// listChats handles GET /api/v1/chats?q=
func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.LoadConversationList(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}

	resp := ListResponse{Chats: []SummaryResponse{}}
	for _, sum := range s.chats.Filter(r.URL.Query().Get("q")) {
		resp.Chats = append(resp.Chats, SummaryResponse{ID: sum.ID, MessageCount: sum.MessageCount})
	}
	if sel, ok := s.chats.Selected(); ok {
		resp.Selected = sel.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// getChat handles GET /api/v1/chats/{id}
func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.LoadTranscript(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	sel, _ := s.chats.Selected()
	writeJSON(w, http.StatusOK, chatResponse(sel))
}

// sendMessage handles POST /api/v1/chats/messages
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	if err := s.chats.SendMessage(r.Context(), req.Text); err != nil {
		s.writeError(w, err)
		return
	}
	sel, _ := s.chats.Selected()
	writeJSON(w, http.StatusOK, chatResponse(sel))
}

// clearChat handles DELETE /api/v1/chats
func (s *Server) clearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.ClearConversation(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
