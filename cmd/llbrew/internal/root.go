package internal

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/goplus/llbrew/internal/config"
	"github.com/goplus/llbrew/internal/logging"
	"github.com/goplus/llbrew/internal/ui"
)

var (
	verbosity  int
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "llbrew",
	Short: "llbrew builds and installs packages from versioned formulas",
	Long: `llbrew installs packages described by versioned formulas. An install
fetches the source, applies the patches of that version, then configures,
builds and installs it into a keg under the prefix.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetupLogger(verbosity)
	},
}

const usageTemplate = `{{bold "Usage:"}}{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if .HasAvailableSubCommands}}

{{bold "Commands:"}}{{range .Commands}}{{if .IsAvailableCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

{{bold "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

{{bold "Global Flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

func init() {
	cobra.AddTemplateFunc("bold", ui.Bold)
	rootCmd.SetUsageTemplate(usageTemplate)
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/llbrew/config.toml)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.New(os.Stderr).Failure(err)
		os.Exit(1)
	}
}

// loadWorkspace loads the configuration named by --config.
func loadWorkspace() (*workspace, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newWorkspace(cfg), nil
}
