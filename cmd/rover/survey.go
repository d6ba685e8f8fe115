package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/survey"
)

var surveyJSON bool

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Run one survey and print the report",
	Long: `Sweeps the sensor mount once, classifies every object found and
prints the sweep table, the object table and the verdict. The drive base
is not moved.`,
	RunE: runSurvey,
}

func init() {
	surveyCmd.Flags().BoolVar(&surveyJSON, "json", false, "Print the report as JSON instead of tables")
}

func runSurvey(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the report
	log.SetOutput(cmd.ErrOrStderr())

	var dev *hardware
	if cfg.Simulate {
		dev = openSim()
	} else {
		dev, err = openHardware(cfg)
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Error("close hardware", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	var console writerConsole
	if !surveyJSON {
		console = writerConsole{out}
	}
	engine := survey.NewEngine(dev.mount, dev.proxy, dev.ranger, console, dev.clock, cfg.SurveyConfig())

	report, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	return printReport(out, report, surveyJSON)
}

func printReport(w io.Writer, report *survey.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := fmt.Fprintf(w, "\n%d objects, %d humans, %d dropped: %s\n",
		len(report.Objects), report.Humans, report.Dropped, report.Verdict)
	return err
}

// writerConsole prints console lines to w. A zero value discards them.
type writerConsole struct{ w io.Writer }

func (c writerConsole) SendString(line string) error {
	if c.w == nil {
		return nil
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}
