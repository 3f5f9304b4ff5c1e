package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/projectd/internal/analysis"
	"github.com/dshills/projectd/internal/projectconfig"
)

func newInitCmd() *cobra.Command {
	var (
		target  string
		allowJS bool
		force   bool
		sets    []string
	)
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default projectd.json",
		Long: `Write a default projectd.json.

With --set and an existing file, only the named compiler options are
updated and the rest of the file is kept.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := filepath.Join(dir, projectconfig.FileName)

			existing, err := os.ReadFile(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				existing = nil
			case err != nil:
				return err
			case !force && len(sets) == 0:
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			case force:
				existing = nil
			}

			data := existing
			verb := "updated"
			if data == nil {
				opts := analysis.Options{analysis.OptionTarget: target}
				if allowJS {
					opts[analysis.OptionAllowJS] = true
				}
				if data, err = projectconfig.Default(opts); err != nil {
					return err
				}
				verb = "wrote"
			}

			for _, kv := range sets {
				key, value, ok := strings.Cut(kv, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid --set %q, want key=value", kv)
				}
				if data, err = projectconfig.SetCompilerOption(data, key, optionValue(value)); err != nil {
					return err
				}
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if verb == "wrote" {
				data = append(data, '\n')
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, path)
			return err
		},
	}
	cmd.Flags().StringVar(&target, "target", "es5", "compilerOptions.target")
	cmd.Flags().BoolVar(&allowJS, "allow-js", false, "include .js and .jsx files")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a compiler option (key=value, repeatable)")
	return cmd
}

// optionValue types a --set value as an integer, a boolean or a string.
func optionValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
