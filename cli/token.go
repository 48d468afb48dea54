package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ActorLancer/Food-Info-Trace/utils"

	"github.com/spf13/cobra"
)

type tokenResult struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		subject string
		secret  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a recorder token for the record store",
		Long: `Issue an HS256 token that allows creating records when the record store
runs with JWT_SECRET. The secret comes from --secret, the config file or
the JWT_SECRET environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = opts.Config.JWTSecret
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return NewExitError(ExitCommandError, "no signing secret: pass --secret or set JWT_SECRET")
			}
			tok, err := utils.GenerateJWT(subject, secret, ttl)
			if err != nil {
				return WrapExitError(ExitCommandError, "sign token", err)
			}
			res := tokenResult{Token: tok, Subject: subject, ExpiresAt: time.Now().Add(ttl).UTC()}
			return opts.formatter(cmd).Success(res, func(w io.Writer) {
				fmt.Fprintln(w, res.Token)
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "recorder", "token subject")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 72*time.Hour, "token lifetime")

	return cmd
}
