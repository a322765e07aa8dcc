package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/MikeSquared-Agency/flowchat/internal/api"
	"github.com/MikeSquared-Agency/flowchat/internal/hermes"
	"github.com/MikeSquared-Agency/flowchat/internal/processor"
	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
	"github.com/MikeSquared-Agency/flowchat/internal/tui"
)

// cmdChats lists the session's conversations
func (a *app) cmdChats(args []string) error {
	if err := a.chats.LoadConversationList(a.ctx); err != nil {
		return a.chatErr(err)
	}

	summaries := a.chats.Filter(strings.Join(args, " "))
	if len(summaries) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMESSAGES")
	for _, s := range summaries {
		id := s.ID
		if id == a.chats.ConversationID() {
			id += " *"
		}
		fmt.Fprintf(w, "%s\t%d\n", id, s.MessageCount)
	}
	return w.Flush()
}

// cmdShow prints one conversation
func (a *app) cmdShow(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: flowchat show <id>")
	}
	if err := a.chats.LoadTranscript(a.ctx, args[0]); err != nil {
		return a.chatErr(err)
	}
	printTranscript(a.chats.Messages())
	return nil
}

// cmdSend sends a message and prints the updated conversation
func (a *app) cmdSend(args []string) error {
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("usage: flowchat send <text...>")
	}
	if err := a.chats.SendMessage(a.ctx, text); err != nil {
		return a.chatErr(err)
	}
	printTranscript(a.chats.Messages())
	return nil
}

// cmdClear clears the test conversation
func (a *app) cmdClear() error {
	if err := a.chats.ClearConversation(a.ctx); err != nil {
		return a.chatErr(err)
	}
	color.Green("Cleared %s\n", a.chats.ConversationID())
	return nil
}

// cmdTUI runs the interactive composer
func (a *app) cmdTUI() error {
	p := tea.NewProgram(tui.NewModel(a.ctx, a.chats), tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// cmdServe runs the local web viewer
func (a *app) cmdServe() error {
	srv := api.NewServer(a.cfg.Port, a.chats, a.logger)
	color.Cyan("Serving on http://localhost:%d\n", a.cfg.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-a.ctx.Done():
		a.logger.Info("shutting down")
		return nil
	}
}

// cmdArchive saves a conversation to Postgres
func (a *app) cmdArchive(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: flowchat archive <id>")
	}
	owner, err := a.owner()
	if err != nil {
		return err
	}
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := a.chats.LoadTranscript(a.ctx, args[0]); err != nil {
		return a.chatErr(err)
	}
	id, err := db.SaveTranscript(a.ctx, owner, args[0], a.chats.Messages())
	if err != nil {
		return err
	}
	color.Green("Archived %s as %s\n", args[0], id)
	return nil
}

// cmdArchives lists archived conversations
func (a *app) cmdArchives() error {
	owner, err := a.owner()
	if err != nil {
		return err
	}
	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.ListArchives(a.ctx, owner)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No archived conversations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARCHIVE\tCONVERSATION\tTURNS\tENTRIES\tARCHIVED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.ConvToken, r.Turns, r.Entries, r.ArchivedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// cmdWatch prints chat events published by any flowchat client. With
// --archive, this user's sent messages are also snapshotted to Postgres.
func (a *app) cmdWatch(args []string) error {
	flags, err := parseFlags(args, "archive")
	if err != nil {
		return err
	}
	if a.events == nil {
		return errors.New("NATS_URL is required to watch events")
	}

	if flags["archive"] == "true" {
		db, err := a.openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		proc := processor.New(a.api, a.sessions, db, a.logger)
		if err := a.events.Subscribe(hermes.SubjectMessageSent, proc.HandleChatEvent); err != nil {
			return err
		}
		color.Cyan("Archiving sent messages to Postgres\n")
	}

	cyan := color.New(color.FgCyan)
	handler := func(subject string, data []byte) {
		var evt hermes.ChatEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			a.logger.Warn("malformed chat event", "subject", subject, "error", err)
			return
		}
		cyan.Printf("%s ", evt.Timestamp.Local().Format("15:04:05"))
		fmt.Printf("%-32s %s turns=%d session=%s\n", subject, evt.ConversationID, evt.Turns, evt.SessionRef)
	}
	for _, subject := range []string{hermes.SubjectMessageSent, hermes.SubjectConversationCleared, hermes.SubjectQuotaExceeded} {
		if err := a.events.Subscribe(subject, handler); err != nil {
			return err
		}
	}

	<-a.ctx.Done()
	return nil
}

func printTranscript(entries []transcript.Entry) {
	if len(entries) == 0 {
		fmt.Println("(empty conversation)")
		return
	}
	you := color.New(color.FgGreen, color.Bold)
	bot := color.New(color.FgYellow, color.Bold)
	for _, e := range entries {
		if e.IsFromUser {
			you.Print("You: ")
		} else {
			bot.Print("Bot: ")
		}
		fmt.Println(e.Text)
	}
}
