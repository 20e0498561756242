package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/csbedford/picklematch/internal/transport/protocol"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow auth state changes over the WebSocket stream",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("compact", false, "print one line per state")
}

func runWatch(cmd *cobra.Command, args []string) error {
	compact, _ := cmd.Flags().GetBool("compact")

	addr, err := wsURL(serverAddr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := NewClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SendHello(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Connected to %s (%s)\n", addr, client.connectionID)

	done := make(chan error, 1)
	go func() {
		done <- client.ReadStates(func(v protocol.AuthStateView) {
			printState(cmd, v, compact)
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted")
		return nil
	}
}

func printState(cmd *cobra.Command, v protocol.AuthStateView, compact bool) {
	out := cmd.OutOrStdout()
	if compact {
		user := "-"
		if v.Session != nil {
			user = v.Session.UserID
		}
		fmt.Fprintf(out, "rev=%d phase=%s user=%s loading=%t\n", v.Rev, v.Phase, user, v.Loading)
		return
	}
	formatted, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintf(out, "[auth_state rev=%d]\n%s\n", v.Rev, formatted)
}
