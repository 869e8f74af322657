package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/jinhuaitao/accounting/internal/auth"
	"github.com/jinhuaitao/accounting/internal/ledger"
	"github.com/jinhuaitao/accounting/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const defaultDBPath = "accounting.db"

// globals are shared by every command.
type globals struct {
	DB     string
	stdin  io.Reader
	stdout io.Writer
	log    logrus.FieldLogger
}

type cliArgs struct {
	DB string `help:"Path to database file." default:"accounting.db"`

	Passwd passwdCmd `cmd:"" help:"Set the shared login password."`
	Export exportCmd `cmd:"" help:"Print a user's transactions as JSON."`
	Sweep  sweepCmd  `cmd:"" help:"Delete expired sessions and login counters."`
}

type passwdCmd struct {
	Password string `help:"New password (prompted for when omitted)."`
}

type exportCmd struct {
	User string `help:"User whose transactions to export." default:"default_user"`
}

type sweepCmd struct{}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var cli cliArgs
	parser, err := kong.New(&cli,
		kong.Name("ledgerctl"),
		kong.Description("Administer the accounting database."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// Allow overriding db path via env var if not explicitly set via flag (flag default is used)
	dbPath := cli.DB
	if path := os.Getenv("DB_PATH"); path != "" && dbPath == defaultDBPath {
		dbPath = path
	}

	logger := logrus.New()
	logger.SetOutput(stderr)

	return kctx.Run(&globals{DB: dbPath, stdin: stdin, stdout: stdout, log: logger})
}

func (c *passwdCmd) Run(g *globals) error {
	password := c.Password
	if password == "" {
		fmt.Fprint(g.stdout, "Password: ")
		var err error
		password, err = readPassword(g.stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(g.stdout) // Print newline after password input
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	db, err := storage.NewDB(g.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	authenticator := auth.NewAuthenticator(db, auth.Options{}, g.log)
	if err := authenticator.SetPassword(context.Background(), password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}

	fmt.Fprintln(g.stdout, "Password updated successfully")
	return nil
}

func (c *exportCmd) Run(g *globals) error {
	db, err := storage.NewDB(g.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	txs, err := ledger.NewRepository(db, nil, g.log).List(context.Background(), c.User)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(g.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(txs)
}

func (c *sweepCmd) Run(g *globals) error {
	db, err := storage.NewDB(g.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	n, err := db.CleanExpired(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout, "Removed %d expired records\n", n)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
