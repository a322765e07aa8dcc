package api

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/MikeSquared-Agency/flowchat/internal/chat"
	"github.com/MikeSquared-Agency/flowchat/internal/render"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type messageView struct {
	HTML     template.HTML
	Dir      string
	FromUser bool
}

type pageData struct {
	Query          string
	Chats          []chat.Summary
	Selected       string
	ConversationID string
	Composer       bool
	Messages       []messageView
	Error          string
}

// index handles GET /?id=&q=. It reloads the list and then the requested
// conversation, or the current selection when no id is given.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query().Get("q")

	if err := s.chats.LoadConversationList(ctx); err != nil {
		s.page(w, statusFor(err), q)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		if sel, ok := s.chats.Selected(); ok {
			id = sel.ID
		}
	}
	if id != "" {
		if err := s.chats.LoadTranscript(ctx, id); err != nil {
			s.page(w, statusFor(err), q)
			return
		}
	}
	s.page(w, http.StatusOK, q)
}

// sendForm handles the composer form post.
func (s *Server) sendForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if err := s.chats.SendMessage(r.Context(), r.PostFormValue("text")); err != nil {
		s.page(w, statusFor(err), "")
		return
	}
	http.Redirect(w, r, "/?id="+url.QueryEscape(s.chats.ConversationID()), http.StatusSeeOther)
}

// clearForm handles the clear button.
func (s *Server) clearForm(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.ClearConversation(r.Context()); err != nil {
		s.page(w, statusFor(err), "")
		return
	}
	http.Redirect(w, r, "/?id="+url.QueryEscape(s.chats.ConversationID()), http.StatusSeeOther)
}

// page renders the current client state without touching the backend.
func (s *Server) page(w http.ResponseWriter, status int, q string) {
	data := pageData{
		Query:          q,
		Chats:          s.chats.Filter(q),
		ConversationID: s.chats.ConversationID(),
		Error:          s.chats.Err(),
	}
	if sel, ok := s.chats.Selected(); ok {
		data.Selected = sel.ID
		data.Composer = sel.ID == data.ConversationID
	}
	for _, m := range s.chats.Messages() {
		data.Messages = append(data.Messages, messageView{
			HTML:     render.Message(m.Text),
			Dir:      render.Dir(m.Text),
			FromUser: m.IsFromUser,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		s.logger.Error("render page", "error", err)
	}
}
