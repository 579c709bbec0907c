package cmd

import (
	"fmt"
	"strings"

	"iochunt/core"

	"github.com/spf13/cobra"
)

// classifiedValue is one row of classify output
type classifiedValue struct {
	Value string `json:"value"`
	core.Classification
}

func newClassifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <value>...",
		Short: "Classify indicator values",
		Long:  "Print the indicator kind (and hash algorithm) assigned to each value. Nothing is stored.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]classifiedValue, 0, len(args))
			for _, arg := range args {
				value := strings.TrimSpace(arg)
				if value == "" {
					return fmt.Errorf("value must not be empty")
				}
				out = append(out, classifiedValue{Value: value, Classification: core.Classify(value)})
			}

			if g.outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), out)
			}
			renderClassifications(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
