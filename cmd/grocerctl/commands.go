package main

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mealkeeper/go-grocery-client/client"
	"github.com/mealkeeper/go-grocery-client/internal/config"
)

func newRootCommand(cfg config.Config, logger zerolog.Logger) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "grocerctl",
		Short:         "Talk to the grocery backend from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	build := func() (*client.Client, error) {
		l := logger
		if !verbose {
			l = l.Level(zerolog.InfoLevel)
		}
		return client.New(cfg, client.WithLogger(l))
	}

	root.AddCommand(
		newLoginCommand(build),
		newLogoutCommand(build),
		newListsCommand(build),
		newSyncCommand(build),
	)
	return root
}

func newLoginCommand(build func() (*client.Client, error)) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange email/password for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			if err := c.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(build func() (*client.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			if err := c.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newListsCommand(build func() (*client.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show the grocery lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			lists, err := c.Grocery().Lists(cmd.Context())
			if err != nil {
				return err
			}
			for _, l := range lists {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (%d items)\n", l.ID, l.Name, len(l.Items))
			}
			return nil
		},
	}
}

func newSyncCommand(build func() (*client.Client, error)) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sync <list-id>",
		Short: "Reconcile a list against the pantry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			result, err := c.Grocery().SyncPantry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full sync result as JSON")
	return cmd
}
