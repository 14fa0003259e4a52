package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"personajes/portal/internal/app"
	"personajes/portal/internal/guard"
	"personajes/portal/internal/session"
)

var (
	sessionFile string
	baseURLFlag string
)

var errRedirected = errors.New("guard redirected")

var checkSessionCmd = &cobra.Command{
	Use:   "check-session",
	Short: "Run the admin guard once against a session record",
	Long: `Reads a session (the JSON kept in the "user" cookie, raw or
percent-encoded) from --session or stdin, runs the admin guard against it
and prints the decision together with the resulting session.

Exits with status 2 when the guard would redirect.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := app.NewComponents(cfg, logger)
		if err != nil {
			return err
		}

		in := io.Reader(os.Stdin)
		if sessionFile != "" && sessionFile != "-" {
			f, err := os.Open(sessionFile)
			if err != nil {
				return fmt.Errorf("open session file: %w", err)
			}
			defer f.Close()
			in = f
		}

		d, err := runCheck(cmd.Context(), comps, in, cmd.OutOrStdout(), baseURLFlag)
		if err != nil {
			return err
		}
		if d.Outcome != guard.Allow {
			return errRedirected
		}
		return nil
	},
}

func init() {
	checkSessionCmd.Flags().StringVar(&sessionFile, "session", "-", "file holding the session JSON, - for stdin")
	checkSessionCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "backend origin, checked against the allow-list like the BASE_URL cookie")
}

type checkReport struct {
	Outcome  string         `json:"outcome"`
	Location string         `json:"location,omitempty"`
	Reason   guard.Reason   `json:"reason"`
	Error    string         `json:"error,omitempty"`
	Session  *session.Login `json:"session"`
}

func runCheck(ctx context.Context, comps app.Components, in io.Reader, out io.Writer, baseURL string) (guard.Decision, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return guard.Decision{}, fmt.Errorf("read session: %w", err)
	}

	store := session.NewMemoryStore()
	login, ok, err := session.DecodeCookieValue(string(raw))
	if err != nil {
		return guard.Decision{}, err
	}
	if ok {
		_ = store.Set(login)
	}

	d := comps.Guard.Check(ctx, store, comps.Resolver.Resolve(baseURL))

	report := checkReport{
		Outcome:  d.Outcome.String(),
		Location: d.Location,
		Reason:   d.Reason,
	}
	if d.Err != nil {
		report.Error = d.Err.Error()
	}
	if current, ok, _ := store.Get(); ok {
		report.Session = &current
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return d, fmt.Errorf("write report: %w", err)
	}
	return d, nil
}
