package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/database"
	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/store"
)

const defaultDBPath = "fintrack.db"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Admin email")
	name := fs.String("name", "Admin", "Display name for a new account")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	superuser := fs.Bool("superuser", false, "Also mark the account as superuser")
	dbPath := fs.String("db", defaultDBPath, "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stdout, "Usage: createadmin -email <email> [-name <name>] [-password <password>] [-superuser] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	// FINTRACK_DB_PATH applies unless -db was given explicitly
	if path := os.Getenv("FINTRACK_DB_PATH"); path != "" && *dbPath == defaultDBPath {
		*dbPath = path
	}

	db, err := database.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	users := store.NewUserStore(db)
	// Tokens are never issued here, so the signer needs no real secret.
	gateway := auth.NewGateway(users, auth.NewHasher(0), auth.NewTokens(nil, 0))

	existing, err := users.GetByEmail(ctx, *email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	var view model.UserView
	if existing != nil {
		role := model.RoleAdmin
		view, err = gateway.UpdateUser(ctx, existing.ID, auth.UserPatch{Role: &role, Password: &password})
		if err != nil {
			return fmt.Errorf("failed to promote user: %w", err)
		}
		fmt.Fprintf(stdout, "User %s promoted to admin (ID %d), password reset\n", view.Email, view.ID)
	} else {
		view, err = gateway.CreateUser(ctx, auth.RegisterInput{
			Email:    *email,
			Password: password,
			Name:     *name,
			Role:     model.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(stdout, "Admin %s created successfully with ID %d\n", view.Email, view.ID)
	}

	if *superuser {
		if err := users.SetSuperuser(ctx, view.ID, true); err != nil {
			return fmt.Errorf("failed to set superuser: %w", err)
		}
		fmt.Fprintln(stdout, "Superuser flag set")
	}
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Non-terminal input (tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
