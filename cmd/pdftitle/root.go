package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shayanh/pdftitle/research"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	rename    bool

	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "pdftitle [files...]",
	Short: "Infer the titles of academic papers from their first page",
	Long: `pdftitle reads the first page of each PDF through pdftohtml and guesses
the paper title from the font sizes and positions of its lines.

Examples:
  pdftitle paper.pdf                 # print the title
  pdftitle --rename *.pdf            # rename every file after its title
  pdftitle --rename --dry-run *.pdf  # show what would be renamed
  pdftitle --multiline paper.pdf     # keep every line of a wrapped title`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTitles,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./pdftitle.yaml or ~/.config/pdftitle/pdftitle.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	pf.BoolP("multiline", "m", false, "join every line of the title block instead of the first one")
	pf.Int("top-margin", 70, "ignore text starting within this many pixels of the page top")
	pf.Int("min-length", 15, "minimum title length in characters")
	pf.Int("max-length", 250, "maximum title length in characters")
	pf.Bool("metadata-fallback", false, "use the PDF metadata title when none is found on the page")
	pf.Bool("dry-run", false, "log renames without touching any file")

	rootCmd.Flags().BoolVarP(&rename, "rename", "r", false, "rename each file after its title")

	bindFlags(map[string]string{
		"config.title.multiline":         "multiline",
		"config.title.top_margin":        "top-margin",
		"config.title.min_length":        "min-length",
		"config.title.max_length":        "max-length",
		"config.title.metadata_fallback": "metadata-fallback",
		"config.rename.dry_run":          "dry-run",
	})

	rootCmd.AddCommand(serveCmd, dropboxCmd, watchCmd)
}

func bindFlags(keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if logFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// app holds the components shared by every command.
type app struct {
	config   research.AppConfig
	log      *logrus.Logger
	store    research.Store
	ex       *research.Extractor
	reporter research.Reporter
}

func newApp(ctx context.Context) (*app, error) {
	log := newLogger()
	config, err := research.ReadConfig(v, cfgFile)
	if err != nil {
		return nil, err
	}
	store, err := research.NewStore(ctx, config.Redis)
	if err != nil {
		return nil, err
	}

	var reporter research.Reporter = research.DummyReporter{}
	if config.Notion.Token != "" && config.Notion.DatabaseID != "" {
		nh := research.NewNotionHandler(config.Notion.Token, config.Notion.DatabaseID)
		reporter = research.NewNotionReporter(nh, store, log)
	}

	conv := research.NewPDFToHTML(config.Converter)
	return &app{
		config:   config,
		log:      log,
		store:    store,
		ex:       research.NewExtractor(conv, store, config.Title, log),
		reporter: reporter,
	}, nil
}

func runTitles(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	var renamer *research.Renamer
	if rename {
		renamer = research.NewRenamer(a.config.Rename, a.log)
	}
	proc := research.NewProcessor(a.ex, renamer, a.reporter, a.log)

	report, err := proc.Process(cmd.Context(), args)
	out := cmd.OutOrStdout()
	for _, fr := range report.Files {
		switch fr.Outcome {
		case research.OutcomeTitled, research.OutcomeUnchanged:
			fmt.Fprintf(out, "%s: %s\n", fr.Path, fr.Title)
		case research.OutcomeRenamed:
			fmt.Fprintf(out, "%s -> %s\n", fr.Path, fr.NewPath)
		}
	}
	a.log.WithFields(logrus.Fields{
		"Titled":  len(report.Files) - report.Count(research.OutcomeSkipped) - report.Count(research.OutcomeFailed),
		"Skipped": report.Count(research.OutcomeSkipped),
		"Failed":  report.Count(research.OutcomeFailed),
	}).Debug("Done.")
	return err
}
