package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/world-mood/mood"
)

type kindInfo struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List the mood catalog",
		Args:  cobra.NoArgs,
		RunE:  runKinds,
	}

	RootCmd.AddCommand(cmd)
}

func runKinds(cmd *cobra.Command, args []string) error {
	kinds := mood.Kinds()
	if formatFlag == "json" {
		out := make([]kindInfo, 0, len(kinds))
		for _, k := range kinds {
			out = append(out, kindInfo{Key: string(k), Label: k.Label(), Color: k.Color().Hex()})
		}
		return printJSON(cmd, out)
	}
	for i, k := range kinds {
		fmt.Fprintf(cmd.OutOrStdout(), "%d  %-9s %-9s %s\n", i+1, k, k.Label(), k.Color().Hex())
	}
	return nil
}
