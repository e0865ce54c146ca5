package main

import (
	"github.com/shayanh/pdftitle/research"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve title extraction over HTTP",
	Long: `Start an HTTP server exposing:
  POST /titles   - body is a PDF (raw or multipart field "file"), returns {"title", "source"}
  GET  /healthz  - liveness check

When config.dropbox.token is set, /dropbox/webhook also answers the Dropbox
webhook challenge and runs a sync pass of config.dropbox.root_folder on
every notification.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		wh := research.NewWebHandler(a.ex, a.log)
		var dwh *research.DropboxWebhookHandler
		if a.config.Dropbox.Token != "" {
			dh := research.NewDropboxHandler(a.config.Dropbox.Token)
			ds := research.NewDropboxSynchronizer(dh, a.ex, a.store, a.reporter, a.config.Rename, a.log)
			dwh = research.NewDropboxWebhookHandler(a.config.Dropbox.RootFolder, ds, a.config.Dropbox.AppSecret, a.log)
		}
		router := research.NewRouter(wh, dwh)
		return research.Serve(cmd.Context(), a.config.Web.Addr, router, a.log)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	if err := v.BindPFlag("config.web.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
}
