package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/MikeSquared-Agency/flowchat/internal/admin"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
)

// cmdAdmin dispatches admin subcommands
func (a *app) cmdAdmin(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: flowchat admin users|user <id>|delete <id>")
	}
	switch args[0] {
	case "users":
		users, err := a.admins.Users(a.ctx)
		if err != nil {
			return err
		}
		printUsers(users)
		return nil
	case "user":
		if len(args) != 2 {
			return errors.New("usage: flowchat admin user <id>")
		}
		return a.adminUser(args[1])
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: flowchat admin delete <id>")
		}
		users, err := a.admins.DeleteUser(a.ctx, args[1])
		if err != nil {
			return err
		}
		color.Green("Deleted user %s\n", args[1])
		printUsers(users)
		return nil
	default:
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func (a *app) adminUser(id string) error {
	d, err := a.admins.User(a.ctx, id)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Printf("  User %s\n", id)
	cyan.Println("  ----")
	for _, key := range []string{"email", "username", "fullname", "phone", "plan", "created_at"} {
		if v, ok := d.User[key]; ok && v != nil {
			fmt.Printf("  %-12s %v\n", key+":", v)
		}
	}
	token := "(not available)"
	if d.Token != "" {
		token = session.Redact(d.Token)
	}
	fmt.Printf("  %-12s %s\n", "token:", token)
	fmt.Println()

	if len(d.Conversations) == 0 {
		fmt.Println("  No conversations found.")
		return nil
	}
	for i, c := range d.Conversations {
		started := "unknown date"
		if !c.Started.IsZero() {
			started = c.Started.Local().Format("2006-01-02 15:04")
		}
		yellow.Printf("  Conversation #%d  %s  (%s)\n", i+1, c.ConvToken, started)
		for j, ex := range c.Exchanges {
			if ex.Question != "" {
				fmt.Printf("    Q%d: %s\n", j+1, ex.Question)
			}
			if ex.Answer != "" {
				fmt.Printf("    A%d: %s\n", j+1, ex.Answer)
			}
		}
		fmt.Println()
	}
	return nil
}

func printUsers(users []admin.User) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tCREATED\tTOKEN")
	for _, u := range users {
		created := ""
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.Local().Format("2006-01-02")
		}
		token := "-"
		if u.Token != "" {
			token = session.Redact(u.Token)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Username, created, token)
	}
	w.Flush()
}
