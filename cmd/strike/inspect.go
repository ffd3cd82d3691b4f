package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/man10/strike/internal/app"
	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
	"github.com/spf13/cobra"
)

// withApp enables an app without ticking for a read-only command.
func withApp(ctx context.Context, fn func(a *app.App) error) (err error) {
	a := app.New(app.Options{
		ConfigDir:    configDir,
		Host:         host.NewRecorder(nil),
		LogOutput:    io.Discard,
		TickInterval: -1,
	})
	if err := a.Enable(ctx); err != nil {
		return err
	}
	defer func() {
		if derr := a.Disable(); derr != nil && err == nil {
			err = derr
		}
	}()
	return fn(a)
}

func newMapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maps",
		Short: "List stored maps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return printMaps(cmd.OutOrStdout(), a.Maps().All())
			})
		},
	}
}

func printMaps(out io.Writer, defs []core.MapDefinition) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWORLD\tENABLED\tSITES\tAUTHOR")
	for _, m := range defs {
		sites := make([]string, 0, len(m.BombSites))
		for _, s := range m.BombSites {
			sites = append(sites, s.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", m.ID, m.DisplayName, m.World, m.Enabled, strings.Join(sites, ","), m.Author)
	}
	return w.Flush()
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				recs, err := a.History().Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printHistory(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of matches to show")
	return cmd
}

func printHistory(out io.Writer, recs []storage.MatchRecord) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDED\tMATCH\tMAP\tSCORE\tWINNER\tREASON\tPLAYERS\tDURATION")
	for _, r := range recs {
		winner := r.Winner
		if winner == "" {
			winner = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d-%d\t%s\t%s\t%d\t%s\n",
			r.EndedAt.Format(time.DateTime), shortMatch(r.MatchID), r.MapID,
			r.ScoreA, r.ScoreB, winner, r.Reason, len(r.Players), r.Duration().Round(time.Second))
	}
	return w.Flush()
}

func shortMatch(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
