package main

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dshills/projectd/internal/project"
)

func newFilesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "files <file>",
		Short: "Show the project a file belongs to and its files",
		Args:  cobra.ExactArgs(1),
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
			files, err := rt.service.FileNames(p.ID())
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), renderFiles(p, files))
			return err
		},
	}
}

func renderFiles(p *project.Project, files []string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Project:   %s (%s)\n", p.ProjectName(), p.Kind())
	fmt.Fprintf(&buf, "Version:   %s (structure %d)\n\n", p.ProjectVersion(), p.StructureVersion())

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"File", "Root"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	roots := 0
	for _, f := range files {
		mark := ""
		if p.IsRoot(f) {
			mark = "*"
			roots++
		}
		table.Append([]string{f, mark})
	}
	table.SetFooter([]string{fmt.Sprintf("Total Files %d", len(files)), fmt.Sprintf("%d", roots)})
	table.Render()
	return buf.String()
}
