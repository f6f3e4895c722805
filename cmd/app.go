// Package cmd implements the dtc command line client of the Delta trading platform.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/delta/api"
	"github.com/etnz/delta/config"
	"github.com/etnz/delta/fusion"
	"github.com/etnz/delta/session"
	"github.com/google/subcommands"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&registerCmd{}, "session")
	c.Register(&loginCmd{}, "session")
	c.Register(&logoutCmd{}, "session")
	c.Register(&pinCmd{}, "session")
	c.Register(&statusCmd{}, "session")

	c.Register(&watchCmd{}, "market")
	c.Register(&pricesCmd{}, "market")
	c.Register(&moversCmd{}, "market")
	c.Register(&searchCmd{}, "market")
	c.Register(&chartCmd{}, "market")

	c.Register(&tradeCmd{side: "buy"}, "trading")
	c.Register(&tradeCmd{side: "sell"}, "trading")
	c.Register(&ordersCmd{}, "trading")

	c.Register(&walletCmd{kind: "deposit"}, "wallet")
	c.Register(&walletCmd{kind: "withdraw"}, "wallet")
	c.Register(&transactionsCmd{}, "wallet")
	c.Register(&journalCmd{}, "wallet")

	c.Register(&profileCmd{}, "account")
	c.Register(&notificationsCmd{}, "account")
	c.Register(&leaderboardCmd{}, "account")
	c.Register(&achievementsCmd{}, "account")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var envFile = flag.String("env", "", "Path to an env file with DELTA_* variables (defaults to .env if present)")
var pinFlag = flag.String("pin", "", "PIN to unlock the session, prompted for when empty and DELTA_PIN is not set")
var rawOutput = flag.Bool("raw", false, "Print markdown instead of rendering it for the terminal")

// app holds everything a command needs to talk to the platform.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *api.Client
	session *session.Session
	store   session.Store
}

// newApp loads the configuration and restores the saved session, if any.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		session: session.New(logger),
		store:   cfg.Store(),
	}
	a.client, err = api.New(cfg.API.URL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithTokens(a.session),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := session.Restore(ctx, a.session, a.store); err != nil {
		var malformed *session.MalformedTokenError
		if !errors.As(err, &malformed) {
			return nil, fmt.Errorf("cannot restore session: %w", err)
		}
		logger.Warn("saved session discarded", zap.Error(err))
	}
	return a, nil
}

// setup is newApp for commands that only report errors.
func setup(ctx context.Context) (*app, subcommands.ExitStatus) {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, subcommands.ExitFailure
	}
	return a, subcommands.ExitSuccess
}

// protected returns an app with an UNLOCKED session. The saved session is
// unlocked with the PIN from -pin, DELTA_PIN or the terminal.
// Every command that reads or changes the account goes through it.
func protected(ctx context.Context) (*app, subcommands.ExitStatus) {
	a, status := setup(ctx)
	if a == nil {
		return nil, status
	}
	if err := a.unlock(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, subcommands.ExitFailure
	}
	return a, subcommands.ExitSuccess
}

func (a *app) unlock(ctx context.Context) error {
	switch a.session.Redirect() {
	case session.Stay:
		return nil
	case session.LoginRoute:
		return fmt.Errorf("%w: run 'dtc login'", session.ErrLoginRequired)
	}

	gate := a.gate()
	mode, err := gate.Challenge(ctx)
	if err != nil {
		return a.invalidate(ctx, gate, err)
	}
	if mode == session.ModeSet {
		return fmt.Errorf("no PIN registered yet: run 'dtc pin' first")
	}
	pin, err := readPin("PIN: ")
	if err != nil {
		return err
	}
	if err := gate.Submit(ctx, pin); err != nil {
		return a.invalidate(ctx, gate, err)
	}
	return a.session.Require()
}

// invalidate forgets the saved session once the gate has released it.
func (a *app) invalidate(ctx context.Context, gate *session.Gate, err error) error {
	if errors.Is(err, session.ErrSessionInvalid) {
		gate.Wait()
		if cerr := a.store.Clear(ctx); cerr != nil {
			a.logger.Warn("cannot clear saved session", zap.Error(cerr))
		}
	}
	return err
}

func (a *app) gate() *session.Gate {
	return session.NewGate(a.session, a.client,
		session.WithResetDelay(a.cfg.Pin.ResetDelay),
		session.WithGateLogger(a.logger),
	)
}

// startFeeds starts polling the platform into a new board.
func (a *app) startFeeds(ctx context.Context) (*fusion.Board, *fusion.Feeds, error) {
	board := fusion.NewBoard()
	feeds, err := fusion.StartFeeds(ctx, board, a.client, a.session, a.cfg.Cadence(), a.logger)
	if err != nil {
		return nil, nil, err
	}
	return board, feeds, nil
}

// waitFor blocks until the board has received topic, or the api timeout.
func (a *app) waitFor(ctx context.Context, board *fusion.Board, topic fusion.Topic, known func(fusion.View) bool) error {
	if known(board.View()) {
		return nil
	}
	updated := make(chan struct{}, 1)
	cancel := board.Subscribe(func(t fusion.Topic) {
		if t != topic {
			return
		}
		select {
		case updated <- struct{}{}:
		default:
		}
	})
	defer cancel()

	timeout := time.NewTimer(a.cfg.API.Timeout)
	defer timeout.Stop()
	for !known(board.View()) {
		select {
		case <-updated:
		case <-timeout.C:
			return fmt.Errorf("no %s received from %s", topic, a.client.BaseURL())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// readPin returns the PIN from -pin, DELTA_PIN or the terminal.
func readPin(prompt string) (string, error) {
	if *pinFlag != "" {
		return *pinFlag, nil
	}
	if pin := os.Getenv("DELTA_PIN"); pin != "" {
		return pin, nil
	}
	return readSecret(prompt)
}

// readSecret reads a line from the terminal without echo.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("cannot read from terminal: %w", err)
	}
	return string(b), nil
}

var stdin = bufio.NewReader(os.Stdin)

// readLine reads a line from stdin.
func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("cannot read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question, no is the default.
func confirm(question string) bool {
	answer, err := readLine(question + " [y/N] ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// printMarkdown renders md for the terminal, or prints it as is with -raw.
func printMarkdown(md string) {
	if *rawOutput || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// fail prints err and returns the failure status.
func fail(err error) subcommands.ExitStatus {
	if msg, ok := api.Message(err); ok {
		fmt.Fprintln(os.Stderr, msg)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	return subcommands.ExitFailure
}
