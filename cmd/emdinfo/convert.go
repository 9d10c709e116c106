package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) convertCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "convert <input> <output.emd>",
		Short: "Write a file's tree and data to an EMD container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			if !strings.EqualFold(filepath.Ext(out), ".emd") {
				return fmt.Errorf("output %s: want an .emd extension", out)
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("output %s exists; use --force to merge into it", out)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			m, _, err := a.open(in)
			if err != nil {
				return err
			}
			var total uint64
			for i := range m.DataGroupCount() {
				g := m.DataGroupAt(i)
				if err := m.LoadDataGroup(g); err != nil {
					return err
				}
				total += g.Data().ByteSize()
			}

			m.SetDirty()
			if err := m.SaveFile(out); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s: %d data groups, %s of data\n", out, m.DataGroupCount(), humanize.IBytes(total))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "write into an existing container")
	return cmd
}
