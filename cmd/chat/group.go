package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/syncloop"
)

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupCreateCmd, groupAddCmd, groupLeaveCmd, groupInfoCmd)

	groupCreateCmd.Flags().StringP("description", "d", "", "group description")
	groupCreateCmd.Flags().StringSliceP("member", "m", nil, "initial member email (repeatable)")
	groupLeaveCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Create, inspect and change groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a group with yourself as the first member",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		members, _ := cmd.Flags().GetStringSlice("member")

		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		group, err := sess.CreateGroup(cmd.Context(), strings.Join(args, " "), desc, members)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (group:%s)\n", group.Name, group.ID)
		return nil
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group-id> <email>...",
	Short: "Add members to a group",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		group, err := sess.AddMembers(cmd.Context(), trimGroupTarget(args[0]), args[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d members\n", group.Name, len(group.Members))
		return nil
	},
}

var groupLeaveCmd = &cobra.Command{
	Use:   "leave <group-id>",
	Short: "Leave a group; the last member to leave deletes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		id := trimGroupTarget(args[0])
		if err := sess.LeaveGroup(cmd.Context(), id, confirmerFor(cmd)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Left group:%s\n", id)
		return nil
	},
}

var groupInfoCmd = &cobra.Command{
	Use:   "info <group-id>",
	Short: "Show a group's details and members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		group, err := sess.Groups().Get(cmd.Context(), trimGroupTarget(args[0]))
		if err != nil {
			return err
		}
		printGroup(cmd.OutOrStdout(), group, time.Now())
		return nil
	},
}

func trimGroupTarget(s string) string {
	return strings.TrimPrefix(s, groupTargetPrefix)
}

func printGroup(w io.Writer, g *models.Group, now time.Time) {
	fmt.Fprintf(w, "%s (group:%s)\n", g.Name, g.ID)
	if g.Description != "" {
		fmt.Fprintf(w, "  %s\n", g.Description)
	}
	fmt.Fprintf(w, "  created by %s %s\n", g.CreatedBy, humanize.RelTime(time.UnixMilli(g.CreatedAt), now, "ago", "from now"))
	fmt.Fprintf(w, "  %d members:\n", len(g.Members))
	for _, m := range g.Members {
		fmt.Fprintf(w, "    %s\n", m)
	}
}
