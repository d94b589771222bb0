package internal

import (
	"github.com/spf13/cobra"

	"github.com/goplus/llbrew/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Update the formula repository",
	Long:  `Sync pulls the latest commit of the formula repository set by formula.remote.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := loadWorkspace()
		if err != nil {
			return err
		}
		p := ui.New(cmd.OutOrStdout())
		if w.cfg.Formula.Remote == "" {
			p.Info("no formula.remote configured, using built-in formulas only")
			return nil
		}
		commit, err := w.store.Sync(cmd.Context())
		if err != nil {
			return err
		}
		p.Success("%s at %s", w.cfg.Formula.Remote, commit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
