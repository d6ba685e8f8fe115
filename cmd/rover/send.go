package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-rescue/internal/httpc"
)

var sendAddr string

var sendCmd = &cobra.Command{
	Use:   "send <key>",
	Short: "Send one command key to a running rover",
	Long: `Posts a single command key to a running rover's dashboard API.
w, a, s and d drive, m surveys, anything else stops.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendAddr, "addr", "localhost:8080", "Rover web address (host:port)")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	reply, err := sendKey(ctx, sendAddr, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %q\n", reply.Status, reply.Key)
	return nil
}

type sendReply struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

// sendKey posts key to /api/command/:key on the rover at addr.
func sendKey(ctx context.Context, addr, key string) (sendReply, error) {
	if len(key) != 1 {
		return sendReply{}, fmt.Errorf("command must be a single key, got %q", key)
	}
	var reply sendReply
	endpoint := "http://" + addr + "/api/command/" + url.PathEscape(key)
	if err := httpc.PostJSON(ctx, endpoint, &reply); err != nil {
		return sendReply{}, fmt.Errorf("send %q: %w", key, err)
	}
	return reply, nil
}
