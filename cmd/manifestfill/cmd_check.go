package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"manifestfill/internal/manifest"
)

var writePath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate config and batch and print the records as they will be entered",
	RunE:  checkBatch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective config, or write it with --write",
	RunE: func(cmd *cobra.Command, args []string) error {
		if writePath != "" {
			if err := cfg.Save(writePath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", writePath)
			return nil
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var flagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

func checkBatch(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	batch, err := manifest.ReadBatch(batchFile)
	if err != nil {
		return err
	}
	records := batch.Joined()

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ROW", "TRIP", "TITLE", "VESSEL", "COUNTRY", "PLACE", "PORT", "DATE", "")
	unknown := 0
	for _, rec := range records {
		n := rec.Normalize(cfg.Sentinels)
		note := ""
		if rec.IsUnknownPort(cfg.Sentinels) {
			note = flagStyle.Render("unknown port")
			unknown++
		}
		t.Row(strconv.Itoa(n.Row), n.TripID, n.ParentTitle, n.Vessel, n.Country, n.Place, n.PortCode, n.Date, note)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, t.String())
	fmt.Fprintf(out, "%d records, %d with unknown port (entered as %s/%s)\n",
		len(records), unknown, cfg.Sentinels.UnknownPlace, cfg.Sentinels.UnknownCountry)
	if dups := batch.DuplicatePorts(); len(dups) > 0 {
		fmt.Fprintf(out, "%s %s\n", flagStyle.Render("duplicate port codes (first entry used):"), strings.Join(dups, ", "))
	}
	return nil
}
