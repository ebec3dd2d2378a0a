package cmd

import (
	"fmt"

	"github.com/Digital-Shane/sora/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently watched episodes",
	Long:  `History reads the local watch history written when history_sink is "file".`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir, err := history.DefaultDir()
	if err != nil {
		return err
	}
	entries, err := history.NewFileStore(dir).Read(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No watch history yet.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.WatchedAt.Local().Format("2006-01-02 15:04"),
			e.Title,
			fmt.Sprintf("S%02dE%02d", e.Season, e.Episode),
			e.Provider,
			e.Route,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Watched", "Title", "Episode", "Source", "Route"}, rows, nil))
	return nil
}
