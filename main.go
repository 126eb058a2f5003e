package main // import "github.com/sourcegraph/refsearch"

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// version is the version field we report back.
const version = "v0.1-dev"

var (
	logLevel string
	logfile  string
	logClose func() error
)

var rootCmd = &cobra.Command{
	Use:   "refsearch",
	Short: "Find references to C# symbols",
	Long: `refsearch finds every reference to a C# symbol in a workspace, including
operator uses, property accessors, calls through using aliases and
suppression attributes that name the symbol.

It runs as a language server, an MCP server or a one-shot command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logClose != nil {
			return logClose()
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug|info|warn|error|crit)")
	rootCmd.PersistentFlags().StringVar(&logfile, "logfile", "", "also log to this file (in addition to stderr)")
	rootCmd.AddCommand(versionCmd)
}

// setupLogging sends the standard logger and log15 to stderr and, if set,
// the log file.
func setupLogging(stderr io.Writer) error {
	lvl, err := log15.LvlFromString(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}
	logW := stderr
	if logfile != "" {
		f, err := os.Create(logfile)
		if err != nil {
			return err
		}
		logClose = f.Close
		logW = io.MultiWriter(stderr, f)
	}
	log.SetFlags(0)
	log.SetOutput(logW)
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(logW, log15.LogfmtFormat())))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
