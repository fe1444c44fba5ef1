package cli

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/espace-classe/internal/auth"
)

// HashPasswordCommand prints the bcrypt hash of a password, for seeding
// accounts by hand.
type HashPasswordCommand struct {
	Cost     int
	Password string
	In       io.Reader
	Out      io.Writer
}

func NewHashPasswordCommand(cost int) *HashPasswordCommand {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &HashPasswordCommand{Cost: cost, In: os.Stdin, Out: os.Stdout}
}

func (cmd *HashPasswordCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.IntVar(&cmd.Cost, "cost", cmd.Cost, "bcrypt cost")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s hash-password [options] [password]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print the bcrypt hash of a password. Reads the password from stdin when omitted.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errors.New("expected at most one password argument")
	}
	cmd.Password = fs.Arg(0)

	if cmd.Cost < bcrypt.MinCost || cmd.Cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func (cmd *HashPasswordCommand) Run() error {
	password := cmd.Password
	if password == "" {
		line, err := bufio.NewReader(cmd.In).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.HashPassword(password, cmd.Cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Out, hash)
	return nil
}
