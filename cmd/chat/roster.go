package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mmynk/pollchat/internal/models"
	"github.com/mmynk/pollchat/internal/syncloop"
)

func init() {
	rootCmd.AddCommand(rosterCmd)
}

var rosterCmd = &cobra.Command{
	Use:   "roster [query]",
	Short: "List direct chats and groups, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		if err := sess.Roster().Refresh(cmd.Context()); err != nil {
			return err
		}
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		printConversations(cmd.OutOrStdout(), sess.Roster().Conversations(query), time.Now())
		return nil
	},
}

func printConversations(w io.Writer, convs []models.Conversation, now time.Time) {
	if len(convs) == 0 {
		fmt.Fprintln(w, "No conversations.")
		return
	}
	for _, conv := range convs {
		switch c := conv.(type) {
		case models.Direct:
			fmt.Fprintf(w, "%s %s <%s>%s\n", presence(c.Peer), c.Title(), c.Peer.Email, lastSeen(c.Peer, now))
		case models.GroupChat:
			fmt.Fprintf(w, "# %s (%d members) group:%s\n", c.Title(), len(c.Group.Members), c.Group.ID)
		}
	}
}

func presence(u models.User) string {
	if u.Online() {
		return "●"
	}
	return "○"
}

func lastSeen(u models.User, now time.Time) string {
	if u.Online() || u.LastSeen == 0 {
		return ""
	}
	return ", last seen " + humanize.RelTime(time.UnixMilli(u.LastSeen), now, "ago", "from now")
}
