package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/miovo/miovo/internal/health"
	"github.com/miovo/miovo/internal/rvc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	healthJSON bool

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the backends are reachable",
		Long:  paragraph(fmt.Sprintf("\nProbe the synthesis backend and, when %s is set, the voice conversion gateway.", keyword("rvc.url"))),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logToStderr()

			config, err := loadConfig()
			if err != nil {
				return err
			}
			engine, err := newEngine(config)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			var rc *rvc.Client
			if viper.GetString("rvc.url") != "" {
				if rc, err = newRVCClient(); err != nil {
					return err
				}
			}

			report := health.Run(cmd.Context(), healthCheckers(engine, rc)...)
			if healthJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}

			if !report.Healthy() {
				return errors.New("some backends are unhealthy")
			}
			return nil
		},
	}
)

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print the report as JSON")
}

func printReport(w io.Writer, report health.Report) {
	for _, r := range report.Results {
		mark := okMark
		if !r.OK {
			mark = failMark
		}
		fmt.Fprintf(w, "%s %-16s %s", mark, r.Name, subtle(r.Duration.Round(time.Millisecond).String()))
		if r.Error != "" {
			fmt.Fprintf(w, "  %s", r.Error)
		}
		fmt.Fprintln(w)
	}
}
