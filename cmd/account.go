package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/delta"
	"github.com/etnz/delta/fusion"
	"github.com/etnz/delta/renderer"
	"github.com/google/subcommands"
)

type profileCmd struct {
	update delta.ProfileUpdate
}

func (*profileCmd) Name() string     { return "profile" }
func (*profileCmd) Synopsis() string { return "print or update the user profile" }
func (*profileCmd) Usage() string {
	return `dtc profile [-name <full name>] [-email <email>] [-phone <phone>] [-bio <bio>]

  Without flags, prints the profile. With flags, updates the given fields.
`
}

func (c *profileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.update.FullName, "name", "", "Full name")
	f.StringVar(&c.update.Email, "email", "", "Email address")
	f.StringVar(&c.update.Phone, "phone", "", "Phone number")
	f.StringVar(&c.update.Bio, "bio", "", "Short biography")
}

func (c *profileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := protected(ctx)
	if a == nil {
		return status
	}
	id, _ := a.session.Identity()
	var p delta.Profile
	var err error
	if c.update == (delta.ProfileUpdate{}) {
		p, err = a.client.Profile(ctx, id.Handle)
	} else {
		p, err = a.client.UpdateProfile(ctx, id.Handle, c.update)
	}
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.ProfileMarkdown(p))
	return subcommands.ExitSuccess
}

type notificationsCmd struct {
	read int64
	all  bool
}

func (*notificationsCmd) Name() string     { return "notifications" }
func (*notificationsCmd) Synopsis() string { return "print the notifications, or mark them read" }
func (*notificationsCmd) Usage() string {
	return `dtc notifications [-read <id> | -all]
`
}

func (c *notificationsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.read, "read", 0, "Mark the notification read")
	f.BoolVar(&c.all, "all", false, "Mark every notification read")
}

func (c *notificationsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.read != 0 && c.all {
		fmt.Fprintln(os.Stderr, "Error: -read and -all flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	a, status := protected(ctx)
	if a == nil {
		return status
	}
	list, err := a.client.Notifications(ctx)
	if err != nil {
		return fail(err)
	}
	board := fusion.NewBoard()
	board.SetNotifications(list)

	var ids []int64
	switch {
	case c.all:
		for _, n := range list {
			if !n.Read {
				ids = append(ids, n.ID)
			}
		}
	case c.read != 0:
		ids = append(ids, c.read)
	}
	var results []<-chan error
	for _, id := range ids {
		results = append(results, board.MarkRead(ctx, id, a.client))
	}
	exit := subcommands.ExitSuccess
	for i, done := range results {
		if err := <-done; err != nil {
			fmt.Fprintf(os.Stderr, "cannot mark notification %d read: %v\n", ids[i], err)
			exit = subcommands.ExitFailure
		}
	}
	printMarkdown(renderer.NotificationsMarkdown(board.Notifications().Value))
	return exit
}

type leaderboardCmd struct {
	weekly bool
}

func (*leaderboardCmd) Name() string     { return "leaderboard" }
func (*leaderboardCmd) Synopsis() string { return "print the ranking of the users by net worth" }
func (*leaderboardCmd) Usage() string {
	return `dtc leaderboard [-weekly]
`
}

func (c *leaderboardCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.weekly, "weekly", false, "Rank by the gains of the week")
}

func (c *leaderboardCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := setup(ctx)
	if a == nil {
		return status
	}
	entries, err := a.client.Leaderboard(ctx, c.weekly)
	if err != nil {
		return fail(err)
	}
	title := "Leaderboard"
	if c.weekly {
		title = "Weekly Leaderboard"
	}
	printMarkdown(renderer.LeaderboardMarkdown(title, entries))
	return subcommands.ExitSuccess
}

type achievementsCmd struct{}

func (*achievementsCmd) Name() string             { return "achievements" }
func (*achievementsCmd) Synopsis() string         { return "print the badges of the user" }
func (*achievementsCmd) Usage() string            { return "dtc achievements\n" }
func (*achievementsCmd) SetFlags(f *flag.FlagSet) {}

func (c *achievementsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := protected(ctx)
	if a == nil {
		return status
	}
	achievements, err := a.client.Achievements(ctx)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderer.AchievementsMarkdown(achievements))
	return subcommands.ExitSuccess
}
