package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-emd/emd"
)

func (a *app) frameCmd() *cobra.Command {
	var (
		group   int
		roles   string
		rawPath string
	)
	cmd := &cobra.Command{
		Use:   "frame <file>",
		Short: "Extract a 2-D frame from a data group",
		Long: `Extract a 2-D frame and report its size and display range.

The slice assigns each axis of the data a role: h (horizontal), v
(vertical) or a fixed index. The default shows axes 0 and 1 with every
other axis at 0.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.open(args[0])
			if err != nil {
				return err
			}
			g := m.DataGroupAt(group)
			if g == nil {
				return fmt.Errorf("data group %d out of range: file has %d", group, m.DataGroupCount())
			}

			s := g.Data().DefaultSlice()
			if roles != "" {
				if s, err = parseSlice(roles); err != nil {
					return err
				}
			}
			f, err := m.Frame(g, s)
			if err != nil {
				return err
			}
			lo, hi := f.DataRange(m.Sampler())

			fmt.Fprintf(a.out, "group   %s\n", g.Node().Path())
			fmt.Fprintf(a.out, "shape   %s %s\n", g.Data().Kind(), g.Data().Space())
			fmt.Fprintf(a.out, "frame   %d x %d at element %d\n", f.Width(), f.Height(), f.Index())
			fmt.Fprintf(a.out, "range   %g .. %g\n", lo, hi)

			if rawPath == "" {
				return nil
			}
			return writeRaw(a, f, rawPath)
		},
	}
	cmd.Flags().IntVar(&group, "group", 0, "data group index")
	cmd.Flags().StringVar(&roles, "slice", "", "axis roles, e.g. h,v,0")
	cmd.Flags().StringVar(&rawPath, "raw", "", "write the frame's raw elements to this file")
	return cmd
}

func writeRaw(a *app, f *emd.Frame, path string) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := f.WriteRaw(out); err != nil {
		return err
	}
	n := uint64(f.Width()*f.Height()) * uint64(f.Kind().Width())
	fmt.Fprintf(a.out, "wrote   %s (%s)\n", path, humanize.IBytes(n))
	return nil
}

// parseSlice reads a comma-separated list of axis roles.
func parseSlice(roles string) (emd.Slice, error) {
	parts := strings.Split(roles, ",")
	s := make(emd.Slice, len(parts))
	for i, p := range parts {
		switch p = strings.ToLower(strings.TrimSpace(p)); p {
		case "h", "x":
			s[i] = emd.Horizontal
		case "v", "y":
			s[i] = emd.Vertical
		default:
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("slice axis %d: %q is not h, v or an index", i, p)
			}
			s[i] = n
		}
	}
	return s, nil
}
