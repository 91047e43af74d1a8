package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/internal/config"
	"github.com/finguard/finguard-server/internal/database"
	"github.com/finguard/finguard-server/internal/logger"
	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "path to a YAML config file")
	username := fs.String("username", "", "username of the new account")
	email := fs.String("email", "", "email of the new account")
	password := fs.String("password", "", "password, prompted for when omitted")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *username == "" || *email == "" {
		fmt.Fprintln(stderr, "adduser: -username and -email are required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	if err := cfg.Database.Validate(); err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	if *password == "" {
		*password, err = readPassword(stdin, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "adduser: reading password: %v\n", err)
			return 1
		}
	}

	lgr, err := logger.New(cfg.Log.Env, cfg.Log.Debug)
	if err != nil {
		lgr = zap.NewNop()
	}
	defer func() { _ = lgr.Sync() }()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}
	defer db.Close()

	if _, err := database.Migrate(ctx, db); err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	hasher, err := auth.NewHasher(cfg.HasherConfig())
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	store := auth.NewCredentialStore(
		auth.NewRepositoryManager(db),
		hasher,
		auth.WithCredentialLogger(logger.NewAdapter(lgr, "adduser")),
		auth.WithActivitySink(auth.LoggerActivitySink{Logger: logger.NewAdapter(lgr, "activity")}),
		auth.WithHashidUserIDs(cfg.Auth.HashidUserIDs),
	)

	id, err := store.Register(ctx, *username, *email, *password)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %s\n", describe(err))
		return 1
	}

	fmt.Fprintln(stdout, id.String())
	return 0
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise.
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func describe(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.TextCode != "" {
			return richErr.Message + " (" + richErr.TextCode + ")"
		}
		return richErr.Message
	}
	return err.Error()
}
