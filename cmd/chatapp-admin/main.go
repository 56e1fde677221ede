// chatapp-admin manages accounts directly in the database, for the first admin and for
// cleaning up without going through the HTTP API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"guildchat-backend/internal/config"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/identity"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/snowflake"
)

var configPath string
var role string

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "chatapp-admin",
	Short:        "Administrative commands for the chat backend",
	SilenceUsage: true,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var listUsersCmd = &cobra.Command{
	Use:   "list",
	Short: "List every user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *identity.Store) error {
			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tCREATED")
			for _, user := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", user.ID, user.UserName, user.Email, user.Role, user.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		})
	},
}

var deleteUserCmd = &cobra.Command{
	Use:   "delete <user id>",
	Short: "Delete a user with the servers they own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := snowflake.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		return withStore(func(store *identity.Store) error {
			if err := store.Delete(cmd.Context(), userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d\n", userID)
			return nil
		})
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "role <user id>",
	Short: "Change the role of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := snowflake.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		return withStore(func(store *identity.Store) error {
			if err := store.SetRole(cmd.Context(), userID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d is now %s\n", userID, role)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path of the config file")
	setRoleCmd.Flags().StringVar(&role, "set", models.RoleAdmin, "role to give, user or admin")

	usersCmd.AddCommand(listUsersCmd, deleteUserCmd, setRoleCmd)
	rootCmd.AddCommand(usersCmd)
}

func withStore(fn func(store *identity.Store) error) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
	if err != nil {
		return err
	}
	sugar := logger.Sugar()
	defer func() {
		_ = sugar.Sync()
	}()

	db, err := database.Setup(cfg, sugar)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			sugar.Error(err)
		}
	}(db)

	store, err := identity.New(db, sugar)
	if err != nil {
		return err
	}
	return fn(store)
}
