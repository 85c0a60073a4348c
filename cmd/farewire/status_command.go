package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"farewire/internal/deal"
	"farewire/internal/sheet"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize deal rows per pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAdapter(cmd.Context(), func(adapter *sheet.Adapter) error {
				snap, err := adapter.ReadAll(cmd.Context())
				if err != nil {
					return err
				}

				counts := make(map[string]int)
				locked := make(map[string]int)
				for _, rec := range snap.Records {
					d := deal.FromRecord(rec)
					if d.ID == "" && d.RawStatus == "" {
						continue
					}
					counts[d.RawStatus]++
					if strings.TrimSpace(d.Get(deal.ColLockedBy)) != "" {
						locked[d.RawStatus]++
					}
				}

				rows := make([][]string, 0, len(counts))
				for _, status := range deal.AllStatuses() {
					if n := counts[string(status)]; n > 0 {
						rows = append(rows, []string{string(status),
							strconv.Itoa(n), strconv.Itoa(locked[string(status)])})
						delete(counts, string(status))
					}
				}
				unknown := make([]string, 0, len(counts))
				for status := range counts {
					unknown = append(unknown, status)
				}
				sort.Strings(unknown)
				for _, status := range unknown {
					rows = append(rows, []string{status,
						strconv.Itoa(counts[status]), strconv.Itoa(locked[status])})
				}

				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No deal rows in the store")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Status", "Deals", "Locked"}, rows, 2, 3))
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <deal-id>",
		Short: "Display one deal row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dealID := strings.TrimSpace(args[0])
			return ctx.withAdapter(cmd.Context(), func(adapter *sheet.Adapter) error {
				snap, err := adapter.ReadAll(cmd.Context())
				if err != nil {
					return err
				}
				rec, ok := snap.FindBy(deal.ColDealID, dealID)
				if !ok {
					return fmt.Errorf("deal %s not found", dealID)
				}

				rows := make([][]string, 0, len(snap.Headers))
				for _, header := range snap.Headers {
					value := rec.Get(header)
					if strings.TrimSpace(value) == "" {
						continue
					}
					rows = append(rows, []string{header, value})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Column", "Value"}, rows))
				return nil
			})
		},
	}
}
