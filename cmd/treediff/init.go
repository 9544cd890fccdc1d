package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/treediff/internal/config"
	"github.com/vango-dev/treediff/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a treediff.json with the default settings",
		Long: `Write treediff.json into DIR (default: the working directory) with every
setting at its default value, ready to edit.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return errors.New(errors.CodeUsage).
					WithDetail(fmt.Sprintf("%s is not a directory.", dir))
			}

			if config.Exists(dir) && !force {
				return errors.New(errors.CodeUsage).
					WithDetail(fmt.Sprintf("%s already exists.", filepath.Join(dir, config.ConfigFileName))).
					WithSuggestion("Pass --force to overwrite it.")
			}

			path := filepath.Join(dir, config.ConfigFileName)
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing treediff.json")

	return cmd
}
