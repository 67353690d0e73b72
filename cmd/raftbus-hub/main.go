// Command raftbus-hub runs the websocket relay server that lets
// raftbus-node processes on separate machines share a named broadcast
// channel (see raft/bus.Hub). It is a dumb relay with no protocol
// awareness of its own.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecclarke42/browseraft/raft/bus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "raftbus-hub",
		Short: "Run a websocket relay hub for browseraft nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			hub := bus.NewHub()
			fmt.Fprintf(os.Stderr, "raftbus-hub listening on %s\n", addr)
			return http.ListenAndServe(addr, hub)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":7630", "address to listen on")
	return cmd
}
