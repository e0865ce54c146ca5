package main

import (
	"time"

	"github.com/shayanh/pdftitle/research"
	"github.com/spf13/cobra"
)

var settle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Rename PDFs as they are added to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		renamer := research.NewRenamer(a.config.Rename, a.log)
		proc := research.NewProcessor(a.ex, renamer, a.reporter, a.log)
		return research.NewWatcher(args[0], proc, settle, a.log).Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "time a file must stay untouched before it is processed")
}
