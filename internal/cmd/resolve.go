package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Digital-Shane/sora/internal/playback"
	"github.com/Digital-Shane/sora/internal/resolve"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <series-id> <season> <episode>",
	Short: "Resolve one episode and print the result",
	Long: `Resolve gathers catalog metadata and the source payload for one episode and prints
the selected stream, subtitle and next episode. Use --json for the full record.`,
	Example: `  sora resolve 70523 1 2 --provider Flixhq --id tv/watch-dark-19950
  sora resolve 96162 1 1 --provider Embed --json`,
	Args: cobra.ExactArgs(3),
	RunE: runResolve,
}

var (
	resolveProvider string
	resolveNativeID string
	resolveJSON     bool
)

func init() {
	addRequestFlags(resolveCmd, &resolveProvider, &resolveNativeID)
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the full resolution as JSON")
	rootCmd.AddCommand(resolveCmd)
}

// addRequestFlags registers the source selection flags shared by commands
// that take an episode.
func addRequestFlags(cmd *cobra.Command, tag, nativeID *string) {
	cmd.Flags().StringVarP(tag, "provider", "p", "Embed", "Stream source: Loklok, Flixhq, KissKh or Embed")
	cmd.Flags().StringVar(nativeID, "id", "", "The source's own id for the series (required by every source but Embed)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	req, err := resolve.ParseRequest(args[0], args[1], args[2], resolveProvider, resolveNativeID)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	pb, err := a.resolver.Resolve(cmd.Context(), req, caller(cfg, req))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resolveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pb)
	}
	printPlayback(out, pb)
	return nil
}

func printPlayback(w io.Writer, pb *resolve.Playback) {
	fmt.Fprintln(w, playback.DisplayTitle(pb))
	if pb.Description != "" {
		fmt.Fprintln(w, pb.Description)
	}
	fmt.Fprintln(w)

	if pb.Rating != nil {
		fmt.Fprintf(w, "Rating:     %.1f (%s)\n", pb.Rating.Value, pb.Rating.Source)
	}
	fmt.Fprintf(w, "Source:     %s\n", pb.Provider)

	if sel := pb.Selection.Stream; sel != nil {
		fmt.Fprintf(w, "Stream:     %s %s\n", sel.Quality, sel.URL)
	}
	if sub := pb.Selection.Subtitle; sub != nil {
		fmt.Fprintf(w, "Subtitles:  %s [%s] %s\n", sub.Language, pb.Selection.SubtitleFormat, sub.URL)
	}

	switch {
	case pb.HasNextEpisode == nil:
		fmt.Fprintln(w, "Next:       unknown")
	case *pb.HasNextEpisode:
		fmt.Fprintf(w, "Next:       %s\n", pb.NextRoute)
	default:
		fmt.Fprintln(w, "Next:       none")
	}

	if pb.UsesEmbed() && len(pb.Embed) > 0 {
		fmt.Fprintln(w, "\nNo direct stream. Embeddable players:")
		for _, f := range pb.Embed {
			fmt.Fprintf(w, "  %d. %s\n", f.Server, f.URL)
		}
	}

	if len(pb.Availability) > 0 {
		var found []string
		for _, av := range pb.Availability {
			found = append(found, fmt.Sprintf("%s (%s)", av.Provider, av.NativeID))
		}
		fmt.Fprintf(w, "\nAlso on:    %s\n", strings.Join(found, ", "))
	}
}
