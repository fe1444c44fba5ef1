package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/idp"
)

// IssueTokenCommand signs a provider token for a profile. The token is
// accepted by GET /auth/provider/login?token= when IDP_MODE=token.
type IssueTokenCommand struct {
	Secret    string
	Issuer    string
	TTL       time.Duration
	ProfileID string
	Email     string
	Out       io.Writer
}

func NewIssueTokenCommand(cfg config.Provider) *IssueTokenCommand {
	return &IssueTokenCommand{
		Secret: cfg.TokenSecret,
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
		Out:    os.Stdout,
	}
}

func (cmd *IssueTokenCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.StringVar(&cmd.ProfileID, "profile", "", "Profile ID to issue the token for (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email claim")
	fs.StringVar(&cmd.Secret, "secret", cmd.Secret, "HMAC secret (defaults to IDP_TOKEN_SECRET)")
	fs.StringVar(&cmd.Issuer, "issuer", cmd.Issuer, "Token issuer")
	fs.DurationVar(&cmd.TTL, "ttl", cmd.TTL, "Token lifetime")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s issue-token -profile <id> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Sign an identity-provider token for a profile.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.ProfileID == "" {
		return errors.New("required flag -profile not provided")
	}
	return nil
}

func (cmd *IssueTokenCommand) Run() error {
	provider, err := idp.NewTokenProvider(idp.TokenConfig{
		Secret: cmd.Secret,
		Issuer: cmd.Issuer,
		TTL:    cmd.TTL,
	})
	if err != nil {
		return err
	}

	token, err := provider.Issue(cmd.ProfileID, cmd.Email)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(cmd.Out, token)
	return nil
}
