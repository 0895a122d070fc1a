package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/syncloop"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileRegisterCmd, profileStatusCmd, profileDeleteCmd)

	profileRegisterCmd.Flags().String("name", "", "display name (default: email local part)")
	profileRegisterCmd.Flags().String("avatar", "", "avatar reference")
	profileDeleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your user profile",
}

var profileRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create or replace your profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		avatar, _ := cmd.Flags().GetString("avatar")

		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := sess.Profiles().Register(cmd.Context(), models.User{
			Email:       sess.Self(),
			DisplayName: name,
			Avatar:      avatar,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s\n", user.Email, user.DisplayName)
		return nil
	},
}

var profileStatusCmd = &cobra.Command{
	Use:       "status <online|offline>",
	Short:     "Set your presence",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{models.StatusOnline, models.StatusOffline},
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		if err := sess.Profiles().SetStatus(cmd.Context(), sess.Self(), args[0] == models.StatusOnline); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", sess.Self(), args[0])
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		if err := sess.DeleteAccount(cmd.Context(), confirmerFor(cmd)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", sess.Self())
		return nil
	},
}
