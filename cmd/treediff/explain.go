package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/treediff/internal/errors"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [CODE]",
		Short: "Describe an error code",
		Long: `Print the description of an error code such as E201, or list every
code when none is given.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					t, _ := errors.GetTemplate(code)
					fmt.Fprintf(out, "%s  %-10s %s\n", code, t.Category, t.Message)
				}
				return nil
			}

			code := strings.ToUpper(args[0])
			t, ok := errors.GetTemplate(code)
			if !ok {
				return errors.New(errors.CodeUsage).
					WithDetail(fmt.Sprintf("Unknown error code %q.", args[0])).
					WithSuggestion("Run 'treediff explain' to list the codes.")
			}
			fmt.Fprintf(out, "%s: %s (%s)\n", code, t.Message, t.Category)
			if t.Detail != "" {
				fmt.Fprintf(out, "\n  %s\n", t.Detail)
			}
			return nil
		},
	}
}
