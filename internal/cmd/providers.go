package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
	providers "github.com/Digital-Shane/sora/internal/provider/init"
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List stream sources and whether they are enabled",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	reg := provider.NewRegistry()
	if err := providers.LoadBuiltinProviders(reg, cfg, log); err != nil {
		return err
	}

	var rows [][]string
	for _, tag := range reg.List() {
		p, _ := reg.Get(tag)
		caps := p.Capabilities()
		rows = append(rows, []string{string(tag), yesNo(reg.IsEnabled(tag)), strconv.Itoa(caps.Priority), features(caps), p.Description()})
	}
	headers := []string{"Tag", "Enabled", "Priority", "Features", "Description"}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
	return nil
}

func features(caps provider.ProviderCapabilities) string {
	var f []string
	if caps.Fetches {
		f = append(f, "fetch")
	}
	if caps.TwoStep {
		f = append(f, "two-step")
	}
	if caps.Searches {
		f = append(f, "search")
	}
	if len(f) == 0 {
		return "embed"
	}
	return strings.Join(f, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
