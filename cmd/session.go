package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/delta"
	"github.com/etnz/delta/api"
	"github.com/etnz/delta/session"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type registerCmd struct {
	username string
	balance  string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account on the platform" }
func (*registerCmd) Usage() string {
	return `dtc register -u <username> [-balance <amount>]

  Creates an account. The password is prompted for. Use 'dtc login' afterwards.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "Username of the new account")
	f.StringVar(&c.balance, "balance", "10000", "Initial cash balance")
}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" {
		fmt.Fprintln(os.Stderr, "Error: -u is required")
		return subcommands.ExitUsageError
	}
	balance, err := decimal.NewFromString(c.balance)
	if err != nil || balance.IsNegative() {
		fmt.Fprintf(os.Stderr, "Error: invalid balance %q\n", c.balance)
		return subcommands.ExitUsageError
	}
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	password, err := readSecret("Password: ")
	if err != nil {
		return fail(err)
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "Error: password cannot be empty")
		return subcommands.ExitFailure
	}
	err = a.client.Register(ctx, api.RegisterRequest{Username: c.username, Password: password, Balance: balance})
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Account %s created with %s\n", c.username, delta.FormatMoney(balance))
	return subcommands.ExitSuccess
}

type loginCmd struct {
	username string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "login and save the session" }
func (*loginCmd) Usage() string {
	return `dtc login -u <username>

  Exchanges the credentials for a session token and saves it. The session
  stays locked: every account command asks for the PIN.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "Username")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.username == "" {
		fmt.Fprintln(os.Stderr, "Error: -u is required")
		return subcommands.ExitUsageError
	}
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	password, err := readSecret("Password: ")
	if err != nil {
		return fail(err)
	}
	if err := session.Login(ctx, a.client, a.session, c.username, password); err != nil {
		return fail(err)
	}
	if err := session.Save(ctx, a.session, a.store); err != nil {
		return fail(err)
	}
	id, _ := a.session.Identity()
	fmt.Printf("Logged in as %s\n", id.Handle)

	mode, err := a.gate().Challenge(ctx)
	if err == nil && mode == session.ModeSet {
		fmt.Println("No PIN registered yet, run 'dtc pin' to create one.")
	}
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "forget the saved session" }
func (*logoutCmd) Usage() string            { return "dtc logout\n" }
func (*logoutCmd) SetFlags(f *flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	if err := session.Logout(ctx, a.session, a.store); err != nil {
		return fail(err)
	}
	fmt.Println("Logged out")
	return subcommands.ExitSuccess
}

type pinCmd struct{}

func (*pinCmd) Name() string     { return "pin" }
func (*pinCmd) Synopsis() string { return "create or check the PIN of the session" }
func (*pinCmd) Usage() string {
	return `dtc pin

  Creates the 4 digits PIN if the account has none, checks it otherwise.
`
}
func (*pinCmd) SetFlags(f *flag.FlagSet) {}

func (c *pinCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	gate := a.gate()
	mode, err := gate.Challenge(ctx)
	if err != nil {
		return fail(a.invalidate(ctx, gate, err))
	}

	prompt := "PIN: "
	if mode == session.ModeSet {
		prompt = "New PIN (4 digits): "
	}
	pin, err := readPin(prompt)
	if err != nil {
		return fail(err)
	}
	if mode == session.ModeSet && *pinFlag == "" && os.Getenv("DELTA_PIN") == "" {
		again, err := readSecret("Repeat PIN: ")
		if err != nil {
			return fail(err)
		}
		if again != pin {
			fmt.Fprintln(os.Stderr, "Error: PINs do not match")
			return subcommands.ExitFailure
		}
	}
	if err := gate.Submit(ctx, pin); err != nil {
		if errors.Is(err, session.ErrMalformedPin) {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		return fail(a.invalidate(ctx, gate, err))
	}
	if mode == session.ModeSet {
		fmt.Println("PIN created")
	} else {
		fmt.Println("PIN verified")
	}
	return subcommands.ExitSuccess
}

type statusCmd struct{}

func (*statusCmd) Name() string             { return "status" }
func (*statusCmd) Synopsis() string         { return "print the saved session state" }
func (*statusCmd) Usage() string            { return "dtc status\n" }
func (*statusCmd) SetFlags(f *flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	fmt.Printf("Platform: %s\n", a.client.BaseURL())
	id, ok := a.session.Identity()
	if !ok {
		fmt.Println("Session:  anonymous, run 'dtc login'")
		return subcommands.ExitSuccess
	}
	fmt.Printf("Session:  %s (%s)\n", id.Handle, a.session.State())
	return subcommands.ExitSuccess
}
