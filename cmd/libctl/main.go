// Command libctl performs operator tasks against the library database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-server/internal/app"
	"library-server/internal/config"
	"library-server/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Operator tools for library-server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newCreateAdminCmd(), newSweepOverdueCmd(), newImportBooksCmd())
	return root
}

// withDeps loads the server configuration and wires the services for one command.
func withDeps(cmd *cobra.Command, fn func(*app.Deps, *logrus.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)
	logger.SetOutput(cmd.ErrOrStderr())

	deps, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()
	return fn(deps, logger)
}

func newCreateAdminCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = readPassword(cmd, "Password: "); err != nil {
					return err
				}
			}
			return withDeps(cmd, func(deps *app.Deps, _ *logrus.Logger) error {
				user, err := deps.Users.CreateAdmin(cmd.Context(), name, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Email, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSweepOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark borrowed records past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(deps *app.Deps, _ *logrus.Logger) error {
				n, err := deps.Borrows.SweepOverdue(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d record(s) marked overdue\n", n)
				return nil
			})
		},
	}
}

func newImportBooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-books FILE",
		Short: "Import a catalogue from a JSON array of books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := readCatalogue(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd, func(deps *app.Deps, logger *logrus.Logger) error {
				res, err := deps.Books.Import(cmd.Context(), books)
				if err != nil {
					return err
				}
				for _, msg := range res.Failed {
					logger.Warn(msg)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d existing, %d failed\n",
					res.Created, res.Skipped, len(res.Failed))
				return nil
			})
		},
	}
}

func readCatalogue(path string) ([]service.BookInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	var books []service.BookInput
	if err := json.Unmarshal(raw, &books); err != nil {
		return nil, fmt.Errorf("parse catalogue %s: %w", path, err)
	}
	if len(books) == 0 {
		return nil, errors.New("catalogue is empty")
	}
	return books, nil
}

func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
