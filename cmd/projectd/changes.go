package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dshills/projectd/internal/project"
)

func newChangesCmd(opts *rootOptions) *cobra.Command {
	var since int
	cmd := &cobra.Command{
		Use:   "changes <file>",
		Short: "Print the project's file changes as JSON",
		Long: `Print the membership response for the project of a file.

Without --since, or with a version the project never reported, the full
file list is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			file, err := absPath(args[0])
			if err != nil {
				return err
			}
			p, err := rt.service.OpenClientFile(cmd.Context(), file, nil)
			if err != nil {
				return err
			}
			resp, err := rt.service.Changes(p.ID(), since)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().IntVar(&since, "since", project.UnknownVersion, "last structure version seen")
	return cmd
}
