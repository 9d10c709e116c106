package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-emd/emd"
)

var (
	groupName     = color.New(color.FgBlue, color.Bold).SprintFunc()
	dataGroupName = color.New(color.FgGreen, color.Bold).SprintFunc()
	datasetName   = color.New(color.FgCyan).SprintFunc()
	attrName      = color.New(color.FgYellow).SprintFunc()
)

func kindName(k emd.NodeKind) func(...interface{}) string {
	switch k {
	case emd.KindDataGroup:
		return dataGroupName
	case emd.KindDataset:
		return datasetName
	case emd.KindAttribute:
		return attrName
	}
	return groupName
}

func (a *app) treeCmd() *cobra.Command {
	var noAttrs bool
	cmd := &cobra.Command{
		Use:   "tree <file>",
		Short: "Print the node tree of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, rep, err := a.open(args[0])
			if err != nil {
				return err
			}
			if err := printTree(a.out, m, !noAttrs); err != nil {
				return err
			}
			printSummary(a.out, m, rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAttrs, "no-attrs", false, "omit attributes")
	return cmd
}

func printTree(w io.Writer, m *emd.Model, attrs bool) error {
	return m.Walk(func(path string, n *emd.Node) error {
		if n.Kind() == emd.KindAttribute && !attrs {
			return nil
		}
		indent := strings.Repeat("  ", strings.Count(path, "/"))
		_, err := fmt.Fprintf(w, "%s%s  %s\n", indent, kindName(n.Kind())(n.Name()), n.Display())
		return err
	})
}

func printSummary(w io.Writer, m *emd.Model, rep *emd.Report) {
	fmt.Fprintf(w, "\n%d data groups, %d warnings\n", m.DataGroupCount(), len(rep.Warnings))
	for i := range m.DataGroupCount() {
		g := m.DataGroupAt(i)
		d := g.Data()
		state := "unloaded"
		if g.IsLoaded() {
			state = "loaded"
		}
		fmt.Fprintf(w, "  [%d] %s  %s %s  %s, %s\n",
			i, g.Node().Path(), d.Kind(), d.Space(), humanize.IBytes(d.ByteSize()), state)
	}
}
