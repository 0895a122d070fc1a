package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mmynk/pollchat/internal/service"
	"github.com/mmynk/pollchat/internal/syncloop"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sendFileCmd)

	sendFileCmd.Flags().String("url", "", "URL of the uploaded file (required)")
	sendFileCmd.Flags().String("name", "", "file name shown to recipients (default: last URL segment)")
	sendFileCmd.Flags().Int64("size", 0, "file size in bytes")
	_ = sendFileCmd.MarkFlagRequired("url")
}

var sendCmd = &cobra.Command{
	Use:   "send <peer-email | group:ID> <text>...",
	Short: "Send a text message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		conv, err := resolveTarget(cmd.Context(), sess, args[0])
		if err != nil {
			return err
		}
		msg, err := sess.SendTo(cmd.Context(), conv, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s at %d\n", conv.Title(), msg.Timestamp)
		return nil
	},
}

var sendFileCmd = &cobra.Command{
	Use:   "send-file <peer-email | group:ID>",
	Short: "Send a reference to an uploaded file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		name, _ := cmd.Flags().GetString("name")
		size, _ := cmd.Flags().GetInt64("size")

		sess, store, err := openSession(noView, syncloop.Inline{})
		if err != nil {
			return err
		}
		defer store.Close()

		conv, err := resolveTarget(cmd.Context(), sess, args[0])
		if err != nil {
			return err
		}
		msg, err := sess.SendFileTo(cmd.Context(), conv, service.FileRef{Name: name, URL: url, Size: size})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (%s) to %s\n", msg.FileName, humanize.Bytes(uint64(msg.FileSize)), conv.Title())
		return nil
	},
}
