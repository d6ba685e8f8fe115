// teleop is the operator console for the rescue rover. It connects to the
// rover's control endpoint and sends single-key drive and survey commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/teslashibe/go-rescue/internal/httpc"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Rover web address (host:port)")
	id := flag.String("id", "", "Operator ID (assigned by the rover when empty)")
	logFile := flag.String("log", "", "Write logs to this file instead of discarding them")
	flag.Parse()

	if err := run(*addr, *id, *logFile); err != nil {
		fmt.Fprintln(os.Stderr, "teleop:", err)
		os.Exit(1)
	}
}

func run(addr, id, logFile string) error {
	// Log lines would corrupt the terminal UI.
	var out io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	log.SetOutput(out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	client, err := Dial(ctx, addr, id)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	statusURL := "http://" + addr + "/api/status"
	status := func(ctx context.Context) (web.RoverState, error) {
		var state web.RoverState
		err := httpc.GetJSON(ctx, statusURL, &state)
		return state, err
	}

	m := newModel(client, client.Messages(), client.Err, status)
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, err = p.Run()
	return err
}
