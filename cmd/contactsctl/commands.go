package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/go-contacts-api/internal/auth"
	"github.com/redmonkez12/go-contacts-api/internal/password"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

type accountOperator interface {
	ConfirmByEmail(ctx context.Context, email string) error
	RevokeByEmail(ctx context.Context, email string) error
}

type userLister interface {
	List(ctx context.Context, limit, offset int) ([]user.User, error)
}

type migrator interface {
	Up(ctx context.Context) error
	Status(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
}

// backend is everything the commands touch, opened once per invocation
type backend struct {
	accounts   accountOperator
	users      userLister
	hasher     *password.Hasher
	migrations migrator
	close      func()
}

type connectFunc func(ctx context.Context) (*backend, error)

// confirmFunc asks the operator before a destructive action
type confirmFunc func(title, description string) (bool, error)

func newRootCmd(connect connectFunc) *cobra.Command {
	return newRootCmdWithPrompt(connect, confirmPrompt)
}

func newRootCmdWithPrompt(connect connectFunc, confirm confirmFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "contactsctl",
		Short:         "Operate the contacts API database",
		Long:          "Apply schema migrations and maintain user accounts. Configuration is read from the environment and .env, like the API server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newMigrateCmd(connect), newUserCmd(connect, confirm))
	return rootCmd
}

// withBackend opens the backend, runs fn and reports any error in the error style
func withBackend(cmd *cobra.Command, connect connectFunc, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := connect(ctx)
	if err != nil {
		printError(cmd.ErrOrStderr(), err.Error())
		return err
	}
	defer b.close()

	if err := fn(ctx, b); err != nil {
		printError(cmd.ErrOrStderr(), err.Error())
		return err
	}
	return nil
}

func newMigrateCmd(connect connectFunc) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, connect, func(ctx context.Context, b *backend) error {
				if err := b.migrations.Up(ctx); err != nil {
					return err
				}
				version, err := b.migrations.Version(ctx)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Schema is at version %d", version))
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, connect, func(ctx context.Context, b *backend) error {
				return b.migrations.Status(ctx)
			})
		},
	}

	migrateCmd.AddCommand(upCmd, statusCmd)
	return migrateCmd
}

func newUserCmd(connect connectFunc, confirm confirmFunc) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Maintain user accounts",
	}

	confirmCmd := &cobra.Command{
		Use:   "confirm <email>",
		Short: "Mark an account's email as confirmed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, func(ctx context.Context, b *backend) error {
				if err := b.accounts.ConfirmByEmail(ctx, args[0]); err != nil {
					return describeAccountError(args[0], err)
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Confirmed %s", args[0]))
				return nil
			})
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke <email>",
		Short: "Revoke an account's refresh token, forcing a new login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				ok, err := confirm(
					fmt.Sprintf("Revoke the session of %s?", args[0]),
					"The user will have to log in again on every device.",
				)
				if err != nil {
					return fmt.Errorf("prompt cancelled: %w", err)
				}
				if !ok {
					printSubtle(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			return withBackend(cmd, connect, func(ctx context.Context, b *backend) error {
				if err := b.accounts.RevokeByEmail(ctx, args[0]); err != nil {
					return describeAccountError(args[0], err)
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Revoked refresh token of %s", args[0]))
				return nil
			})
		},
	}
	revokeCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	rehashCmd := &cobra.Command{
		Use:   "rehash-report",
		Short: "List accounts whose password hash uses a legacy scheme or outdated parameters",
		Long:  "Hashes are upgraded on the user's next login; this only reports which accounts are still pending.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pageSize, _ := cmd.Flags().GetInt("page-size")
			if pageSize < 1 {
				return fmt.Errorf("page-size must be positive, got %d", pageSize)
			}

			return withBackend(cmd, connect, func(ctx context.Context, b *backend) error {
				out := cmd.OutOrStdout()
				printTitle(out, "Password hash report")

				total, pending := 0, 0
				for offset := 0; ; offset += pageSize {
					page, err := b.users.List(ctx, pageSize, offset)
					if err != nil {
						return err
					}
					for _, u := range page {
						total++
						if b.hasher.NeedsRehash(u.PasswordHash) {
							pending++
							fmt.Fprintf(out, "  %-6d %s\n", u.ID, u.Email)
						}
					}
					if len(page) < pageSize {
						break
					}
				}

				if pending == 0 {
					printSuccess(out, fmt.Sprintf("All %d accounts use current parameters", total))
					return nil
				}
				printSubtle(out, fmt.Sprintf("%d of %d accounts need rehash", pending, total))
				return nil
			})
		},
	}
	rehashCmd.Flags().Int("page-size", 500, "Accounts fetched per query")

	userCmd.AddCommand(confirmCmd, revokeCmd, rehashCmd)
	return userCmd
}

func describeAccountError(email string, err error) error {
	if errors.Is(err, auth.ErrUserNotFound) {
		return fmt.Errorf("no account registered for %s", email)
	}
	return err
}
