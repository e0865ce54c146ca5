package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shayanh/pdftitle/research"
	"github.com/spf13/cobra"
)

var dropboxCmd = &cobra.Command{
	Use:   "dropbox [folder]",
	Short: "Rename the PDFs of a Dropbox folder after their titles",
	Long: `Run one synchronization pass over a Dropbox folder. Only files changed
since the last successful pass are visited when redis is configured.
The folder defaults to config.dropbox.root_folder.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		if a.config.Dropbox.Token == "" {
			return errors.New("config.dropbox.token is not set")
		}
		folder := a.config.Dropbox.RootFolder
		if len(args) > 0 {
			folder = args[0]
		}

		dh := research.NewDropboxHandler(a.config.Dropbox.Token)
		ds := research.NewDropboxSynchronizer(dh, a.ex, a.store, a.reporter, a.config.Rename, a.log)
		reports, err := ds.SyncFolder(cmd.Context(), folder)
		for _, fr := range reports {
			if fr.Outcome == research.OutcomeRenamed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", fr.Path, fr.NewPath)
			}
		}
		return err
	},
}
