// Command syncdo is a command-line client for the SyncDo API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultServer = "http://localhost:8000"

// readPassword is a seam over term.ReadPassword for tests.
var readPassword = term.ReadPassword

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	server string
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:          "syncdo",
		Short:        "SyncDo command-line client",
		SilenceUsage: true,
	}
	server := os.Getenv("SYNCDO_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&c.server, "server", server, "API base URL (env SYNCDO_SERVER)")

	root.AddCommand(c.signupCmd(), c.loginCmd(), c.logoutCmd(), c.meCmd(), c.calendarCmd(), c.tasksCmd())
	return root
}

func (c *cli) printJSON(v any) {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}

// authed returns a client carrying the stored token for c.server.
func (c *cli) authed() (*apiClient, error) {
	tf, err := loadToken()
	if err != nil {
		return nil, err
	}
	if tf.Server != "" && tf.Server != c.server {
		return nil, fmt.Errorf("stored token belongs to %s (login again or pass --server)", tf.Server)
	}
	return newAPIClient(c.server, tf.AccessToken), nil
}

func promptPassword(password string) (string, error) {
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.New("empty password")
	}
	return string(b), nil
}

func (c *cli) signupCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := promptPassword(password)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			tok, err := newAPIClient(c.server, "").signup(ctx, email, pw, name)
			if err != nil {
				return err
			}
			if err := saveToken(c.server, tok.AccessToken); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "signed up as", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := promptPassword(password)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			tok, err := newAPIClient(c.server, "").login(ctx, email, pw)
			if err != nil {
				return err
			}
			if err := saveToken(c.server, tok.AccessToken); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return clearToken()
		},
	}
}

func (c *cli) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.authed()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			m, err := api.me(ctx)
			if err != nil {
				return err
			}
			c.printJSON(m)
			return nil
		},
	}
}

func (c *cli) calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Link or unlink Google Calendar",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "link REFRESH_TOKEN",
			Short: "Store a Google OAuth refresh token for calendar sync",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := c.authed()
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd.Context())
				defer cancel()
				m, err := api.linkCalendar(ctx, args[0])
				if err != nil {
					return err
				}
				c.printJSON(m)
				return nil
			},
		},
		&cobra.Command{
			Use:   "unlink",
			Short: "Remove the stored calendar credential",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				api, err := c.authed()
				if err != nil {
					return err
				}
				ctx, cancel := withTimeout(cmd.Context())
				defer cancel()
				m, err := api.unlinkCalendar(ctx)
				if err != nil {
					return err
				}
				c.printJSON(m)
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(c.tasksListCmd(), c.tasksAddCmd(), c.tasksEditCmd(), c.tasksDoneCmd(), c.tasksRmCmd())
	return cmd
}

func (c *cli) tasksListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := c.authed()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			ts, err := api.listTasks(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				c.printJSON(ts)
				return nil
			}
			for _, t := range ts {
				fmt.Fprintln(c.out, formatTask(t))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func formatTask(t task) string {
	mark := " "
	if t.IsCompleted {
		mark = "x"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %d  %-6s  %s", mark, t.ID, t.Priority, t.Title)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "  due %s", t.DueDate.UTC().Format(time.RFC3339))
	}
	if t.GoogleEventID != nil {
		b.WriteString("  (calendar)")
	}
	return b.String()
}

func (c *cli) tasksAddCmd() *cobra.Command {
	var desc, due, priority string
	var noSync bool
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{"title": args[0], "sync_with_calendar": !noSync}
			if desc != "" {
				fields["description"] = desc
			}
			if due != "" {
				fields["due_date"] = due
			}
			if priority != "" {
				fields["priority"] = priority
			}
			api, err := c.authed()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			t, err := api.createTask(ctx, fields)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, formatTask(t))
			return nil
		},
	}
	cmd.Flags().StringVar(&desc, "desc", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due time, RFC 3339 or YYYY-MM-DDTHH:MM (UTC)")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "keep the task out of the calendar")
	return cmd
}

func (c *cli) tasksEditCmd() *cobra.Command {
	var title, desc, due, priority string
	var clearDesc, clearDue bool
	var syncFlag, undone bool
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change selected fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad task id %q", args[0])
			}
			fields := map[string]any{}
			f := cmd.Flags()
			if f.Changed("title") {
				fields["title"] = title
			}
			switch {
			case clearDesc:
				fields["description"] = nil
			case f.Changed("desc"):
				fields["description"] = desc
			}
			switch {
			case clearDue:
				fields["due_date"] = nil
			case f.Changed("due"):
				fields["due_date"] = due
			}
			if f.Changed("priority") {
				fields["priority"] = priority
			}
			if f.Changed("sync") {
				fields["sync_with_calendar"] = syncFlag
			}
			if undone {
				fields["is_completed"] = false
			}
			if len(fields) == 0 {
				return errors.New("nothing to change")
			}
			return c.update(cmd.Context(), id, fields)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&desc, "desc", "", "new description")
	cmd.Flags().BoolVar(&clearDesc, "clear-desc", false, "remove the description")
	cmd.Flags().StringVar(&due, "due", "", "new due time")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due time")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().BoolVar(&syncFlag, "sync", true, "mirror to calendar")
	cmd.Flags().BoolVar(&undone, "undone", false, "mark as not completed")
	return cmd
}

func (c *cli) tasksDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad task id %q", args[0])
			}
			return c.update(cmd.Context(), id, map[string]any{"is_completed": true})
		},
	}
}

func (c *cli) update(ctx context.Context, id int64, fields map[string]any) error {
	api, err := c.authed()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	t, err := api.updateTask(ctx, id, fields)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, formatTask(t))
	return nil
}

func (c *cli) tasksRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task (and its calendar event)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad task id %q", args[0])
			}
			api, err := c.authed()
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()
			if err := api.deleteTask(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "deleted", id)
			return nil
		},
	}
}
