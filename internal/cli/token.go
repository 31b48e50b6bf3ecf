package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recallwatch/internal/auth"
	"recallwatch/internal/config"
)

func newTokenCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		hashPw  bool
	)
	ccmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed operator token for POST /ingest.",
		Long: `Print a signed operator token for POST /ingest.

With --hash-password the command instead reads a password from stdin and
prints the bcrypt hash to set as auth.operator_password_hash, which enables
POST /auth/login on the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hashPw {
				in, err := io.ReadAll(stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				pw := strings.TrimRight(string(in), "\r\n")
				if pw == "" {
					return errors.New("empty password on stdin")
				}
				hash, err := auth.HashPassword(pw)
				if err != nil {
					return fmt.Errorf("hash password: %w", err)
				}
				fmt.Fprintln(stdout, hash)
				return nil
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			cfg, _, err := loadConfig(cmd, stderr)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.JWTTTL
			}
			ts := auth.TokenService{Secret: []byte(cfg.Auth.JWTSecret), Issuer: cfg.Auth.JWTIssuer, Duration: ttl}
			tok, exp, err := ts.Sign(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, tok)
			fmt.Fprintf(stderr, "expires at %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	ccmd.Flags().StringVar(&subject, "subject", "", "operator name recorded in the token")
	ccmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.jwt_ttl)")
	ccmd.Flags().BoolVar(&hashPw, "hash-password", false, "print the bcrypt hash of the password read from stdin")
	config.RegisterLogFlags(ccmd.Flags())
	return ccmd
}
