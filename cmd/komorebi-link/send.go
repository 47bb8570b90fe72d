// File: cmd/komorebi-link/send.go
// Author: momentics <momentics@gmail.com>

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/komorebi-link/transport"
)

var sendSocket string

var sendCmd = &cobra.Command{
	Use:   "send [payload]",
	Short: "Write one JSON document to a subscription socket",
	Long: `Send connects to a subscription socket as a peer and writes one JSON
document, the way komorebi pushes a notification. With no argument the
payload is read from stdin. Diagnostic tooling only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload []byte
		if len(args) == 1 {
			payload = []byte(args[0])
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read payload from stdin: %w", err)
			}
			payload = data
		}

		path := sendSocket
		if path == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path, err = cfg.SocketPath()
			if err != nil {
				return err
			}
		}
		if err := transport.WriteMessage(path, payload); err != nil {
			return fmt.Errorf("send payload: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", len(payload), path)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendSocket, "socket", "", "socket path (defaults to the configured one)")
	rootCmd.AddCommand(sendCmd)
}
