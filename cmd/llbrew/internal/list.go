package internal

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/llbrew/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the formulas and their versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := loadWorkspace()
		if err != nil {
			return err
		}
		return w.list(ui.New(cmd.OutOrStdout()))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func (w *workspace) list(p *ui.Printer) error {
	var rows [][]string
	for _, name := range w.store.Names() {
		all, err := w.store.Versions(name)
		if err != nil {
			return err
		}
		versions := make([]string, len(all))
		for i, f := range all {
			versions[i] = f.Version().String()
		}
		linked := w.layout.Linked(name)
		if linked == "" {
			linked = "-"
		}
		rows = append(rows, []string{name, strings.Join(versions, ", "), linked})
	}
	return p.Table([]string{"Name", "Versions", "Linked"}, rows)
}
