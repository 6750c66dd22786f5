package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-ilq/internal/app"
	authmw "github.com/mind-engage/mindengage-ilq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ilq/internal/config"
	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

// cliRequest is the RequestContext of a one-off command line render. It
// never carries a postback.
type cliRequest struct {
	params  map[string]int64
	sesskey string
}

func (r *cliRequest) OptionalInt(name string) (int64, bool) {
	v, ok := r.params[name]
	return v, ok && v != 0
}

func (r *cliRequest) SessionToken() string { return r.sesskey }

func (r *cliRequest) Form() url.Values { return url.Values{} }

func (r *cliRequest) SetPageContext(engine.Context) {}

func newFilterCmd(o *rootOpts) *cobra.Command {
	var (
		user     string
		courseID int64
		cmid     int64
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "filter [file]",
		Short: "Render the inline questions in a file (or stdin) as a user would see them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return o.withApp(cmd.Context(), func(ctx context.Context, _ config.Config, a *app.App) error {
				req := &cliRequest{params: map[string]int64{"courseid": courseID, "cmid": cmid}}
				if user != "" {
					usr, _, err := a.Users.ByUsername(ctx, user)
					if err != nil {
						return fmt.Errorf("user %q: %w", user, err)
					}
					s := authmw.NewSession(usr.ID, usr.Username, usr.Role)
					req.sesskey = s.SessKey
					ctx = authmw.WithSession(ctx, s)
				}
				var out string
				if strict {
					var err error
					if out, err = a.Filter.Apply(ctx, req, text); err != nil {
						return err
					}
				} else {
					out = a.Filter.Filter(ctx, req, text)
				}
				_, err := io.WriteString(cmd.OutOrStdout(), out)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "render as this username (default: anonymous)")
	cmd.Flags().Int64Var(&courseID, "courseid", 0, "course the text belongs to")
	cmd.Flags().Int64Var(&cmid, "cmid", 0, "course module the text belongs to")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail instead of printing the text unfiltered")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}
