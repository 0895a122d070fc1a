package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/pollchat/internal/session"
)

// promptConfirmer asks a yes/no question on in/out. EOF counts as "no".
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(message string) bool {
	for {
		fmt.Fprintf(p.out, "%s [y/N]: ", message)
		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			return false
		}

		switch strings.TrimSpace(strings.ToLower(line)) {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		default:
			fmt.Fprintln(p.out, "Please enter 'y' or 'n'.")
		}
	}
}

// confirmerFor returns an always-yes confirmer when --yes is set, otherwise a prompt
// on the command's streams.
func confirmerFor(cmd *cobra.Command) session.Confirmer {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return session.ConfirmFunc(func(string) bool { return true })
	}
	return promptConfirmer{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}
