// Command acoustic inspects and processes multichannel wav recordings.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pipelined/acoustic/log"
)

const (
	successExitCode = 0
	errorExitCode   = 1
)

type command interface {
	command(logger *logrus.Logger) *cobra.Command
}

var commands = []command{
	&infoCommand{},
	&triggerCommand{},
	&splitCommand{},
}

func newRootCommand() *cobra.Command {
	logger := log.GetLogger()
	var verbose bool
	root := &cobra.Command{
		Use:           "acoustic",
		Short:         "Inspect and process microphone array recordings",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
	for _, c := range commands {
		root.AddCommand(c.command(logger))
	}
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
		os.Exit(errorExitCode)
	}
	os.Exit(successExitCode)
}
