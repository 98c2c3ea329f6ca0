// gyandarshak-admin runs one-off account maintenance against the service
// database. It reads the same configuration as the gateway.
//
//	gyandarshak-admin promote --email someone@example.com
//	gyandarshak-admin create-admin --email root@example.com --name Root --password ...
//	gyandarshak-admin hash-password --password ...
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/gyandarshak/gyandarshak/internal/config"
	"github.com/gyandarshak/gyandarshak/internal/db"
	"github.com/gyandarshak/gyandarshak/internal/identity"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `Usage: gyandarshak-admin <command> [flags]

Commands:
  promote        give an existing account the admin role
  create-admin   create an admin account, or promote it if the email exists
  hash-password  print a bcrypt hash suitable for ADMIN_PASS_HASH
`

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		return nil
	}
	cmd, rest := args[0], args[1:]

	var email, name, password string
	fs := pflag.NewFlagSet("gyandarshak-admin "+cmd, pflag.ContinueOnError)
	fs.SetOutput(out)
	switch cmd {
	case "promote":
		fs.StringVar(&email, "email", "", "email of the account to promote")
	case "create-admin":
		fs.StringVar(&email, "email", "", "admin email")
		fs.StringVar(&name, "name", "Administrator", "admin full name")
		fs.StringVar(&password, "password", "", "admin password")
	case "hash-password":
		fs.StringVar(&password, "password", "", "password to hash")
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if cmd == "hash-password" {
		if password == "" {
			return errors.New("--password is required")
		}
		hash, err := identity.NewService(nil, nil).HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hash)
		return nil
	}

	if email == "" {
		return errors.New("--email is required")
	}
	if cmd == "create-admin" && password == "" {
		return errors.New("--password is required")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return err
	}
	defer dbh.Close()
	users := identity.NewService(dbh, time.Now)

	switch cmd {
	case "promote":
		if err := users.PromoteToAdmin(ctx, email); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated role to admin for %s\n", email)
	case "create-admin":
		hash, err := users.HashPassword(password)
		if err != nil {
			return err
		}
		created, err := users.EnsureAdmin(ctx, email, name, hash)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(out, "Created admin %s\n", email)
		} else {
			fmt.Fprintf(out, "Promoted existing account %s to admin\n", email)
		}
	}
	return nil
}
