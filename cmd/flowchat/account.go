package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/MikeSquared-Agency/flowchat/internal/account"
	"github.com/MikeSquared-Agency/flowchat/internal/backend"
)

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ":")), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// parseFlags reads "--name value" and "--name=value" pairs. Flags listed in
// bools take no value.
func parseFlags(args []string, bools ...string) (map[string]string, error) {
	isBool := map[string]bool{}
	for _, b := range bools {
		isBool[b] = true
	}

	out := map[string]string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unexpected argument %q", arg)
		}
		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			out[k] = v
			continue
		}
		if isBool[name] {
			out[name] = "true"
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("--%s requires a value", name)
		}
		out[name] = args[i+1]
		i++
	}
	return out, nil
}

// cmdLogin signs in and stores the session
func (a *app) cmdLogin(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	email := flags["email"]
	if email == "" {
		if email, err = prompt("Email: "); err != nil {
			return err
		}
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	sess, err := a.accounts.Login(a.ctx, email, password)
	if err != nil {
		a.logger.Debug("login failed", "error", err)
		return errors.New(account.Message(err))
	}

	name := sess.FullName
	if name == "" {
		name = sess.Email
	}
	color.Green("Logged in as %s\n", name)
	return nil
}

// cmdRegister creates an account in two stages: the backend drafts a bot
// definition from the website, then the account is saved with it.
func (a *app) cmdRegister(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	reg := backend.Registration{
		Email:               flags["email"],
		FullName:            flags["name"],
		Phone:               flags["phone"],
		Plan:                flags["plan"],
		GoogleCalendarToken: flags["calendar"],
	}
	if reg.Email == "" || reg.FullName == "" || reg.Phone == "" {
		return errors.New(account.Message(account.ErrMissingFields))
	}
	if reg.Plan == "" {
		return errors.New(account.Message(account.ErrPlanRequired))
	}

	if reg.Password, err = promptPassword("Password: "); err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if confirm != reg.Password {
		return errors.New("Passwords do not match.")
	}

	reg.BotDefinition = flags["definition"]
	if reg.BotDefinition == "" {
		color.Cyan("Asking the backend to define your bot from %s...\n", flags["site"])
		def, err := a.accounts.DefineBot(a.ctx, flags["site"])
		if err != nil {
			a.logger.Debug("define bot failed", "error", err)
			return errors.New(account.Message(err))
		}
		reg.BotDefinition = def
		fmt.Println()
		fmt.Println(def)
		fmt.Println()
	}

	if _, err := a.accounts.Register(a.ctx, reg); err != nil {
		a.logger.Debug("register failed", "error", err)
		if errors.Is(err, account.ErrMissingFields) || errors.Is(err, account.ErrPlanRequired) || errors.Is(err, account.ErrBotDefinitionRequired) {
			return errors.New(account.Message(err))
		}
		return err
	}
	color.Green("Registered %s. You are now logged in.\n", reg.Email)
	return nil
}

// cmdLogout forgets the stored session
func (a *app) cmdLogout() error {
	if err := a.accounts.Logout(); err != nil {
		return err
	}
	color.Green("Logged out\n")
	return nil
}

// cmdProfile shows or edits the signed-in user's profile
func (a *app) cmdProfile(args []string) error {
	if len(args) > 0 && args[0] == "edit" {
		return a.cmdProfileEdit(args[1:])
	}

	info, err := a.accounts.Profile(a.ctx)
	if err != nil {
		if errors.Is(err, account.ErrNotLoggedIn) {
			return errors.New(account.Message(err))
		}
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Profile")
	cyan.Println("  -------")
	fmt.Printf("  Email:          %s\n", info.Email)
	fmt.Printf("  Name:           %s\n", info.FullName)
	fmt.Printf("  Phone:          %s\n", info.Phone)
	fmt.Printf("  Plan:           %s\n", info.Plan)
	fmt.Printf("  Calendar token: %s\n", info.CalendarToken)
	fmt.Println()
	cyan.Println("  Bot definition")
	fmt.Println(indent(info.BotDefinition, "  "))
	fmt.Println()
	return nil
}

// cmdProfileEdit updates calendar token, bot definition and password. Fields
// not given keep their current value.
func (a *app) cmdProfileEdit(args []string) error {
	flags, err := parseFlags(args, "password")
	if err != nil {
		return err
	}

	info, err := a.accounts.Profile(a.ctx)
	if err != nil {
		if errors.Is(err, account.ErrNotLoggedIn) {
			return errors.New(account.Message(err))
		}
		return err
	}

	upd := backend.UserUpdate{
		CalendarToken: info.CalendarToken,
		Password:      info.Password,
		BotDefinition: info.BotDefinition,
	}
	if v, ok := flags["calendar"]; ok {
		upd.CalendarToken = v
	}
	if v, ok := flags["definition"]; ok {
		upd.BotDefinition = v
	}
	if flags["password"] == "true" {
		if upd.Password, err = promptPassword("New password: "); err != nil {
			return err
		}
	}

	if err := a.accounts.UpdateProfile(a.ctx, upd); err != nil {
		return err
	}
	color.Green("Profile updated\n")
	return nil
}

func indent(s, prefix string) string {
	if s == "" {
		return prefix + "(none)"
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
