// Command add-user provisions a login in the ledger database.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"eventledger/internal/auth"
	"eventledger/internal/cli"
	"eventledger/internal/config"
	applog "eventledger/internal/log"
	"eventledger/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	var username, password, dbPath string
	flag.StringVar(&username, "username", "", "username to create (prompted when empty)")
	flag.StringVar(&password, "password", "", "password (read from stdin when empty)")
	flag.StringVar(&dbPath, "db", cfg.SQLiteDBPath, "SQLite database path")
	flag.Parse()

	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, applog.ComponentAuth)

	in := bufio.NewReader(os.Stdin)
	var err error
	if username == "" {
		if username, err = prompt(in, "Username: "); err != nil {
			fail("read username: %v", err)
		}
	}
	if password == "" {
		if password, err = prompt(in, "Password: "); err != nil {
			fail("read password: %v", err)
		}
	}
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		fail("username and password cannot be empty")
	}

	repo := cli.InitSQLite(logger, dbPath)
	defer repo.Close()

	user, err := auth.NewPasswordAuthenticator(repo).Register(context.Background(), username, password)
	switch {
	case errors.Is(err, storage.ErrUsernameTaken):
		fail("username %q already exists", strings.TrimSpace(username))
	case err != nil:
		fail("create user: %v", err)
	}
	fmt.Printf("User %q created (id %d)\n", user.Username, user.ID)
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
