package main

import (
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/config"
	"github.com/t2bot/iadrive/common/logging"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/common/version"
	"github.com/t2bot/iadrive/metadata"
	"github.com/t2bot/iadrive/runner"
)

func main() {
	_ = godotenv.Load()
	version.SetDefaults()

	app := &cli.App{
		Name:      "iadrive",
		Usage:     "mirror Google Drive, Google Docs and Mega.nz content to archive.org",
		Version:   version.Version,
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "metadata",
				Aliases: []string{"m"},
				Usage:   "custom metadata as key:value, repeatable; repeated keys become a list",
			},
			&cli.BoolFlag{
				Name:  "no-folders",
				Usage: "flatten file names instead of preserving folder paths",
			},
			&cli.StringFlag{
				Name:  "dest",
				Usage: "directory to download into (default: a temporary directory)",
			},
			&cli.StringFlag{
				Name:  "identifier",
				Usage: "override the derived archive.org item identifier",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "target collection (default: opensource_media)",
			},
			&cli.StringFlag{
				Name:  "mediatype",
				Usage: "override the derived mediatype",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Google API key for owner lookups (overrides GOOGLE_API_KEY)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "download and show what would be uploaded without uploading",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "keep the downloaded files after a successful upload",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only log errors",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		cli.HandleExitCoder(err)
		logrus.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one URL is required; see --help", 2)
	}

	level := "info"
	if c.Bool("quiet") {
		level = "error"
	}
	if c.Bool("debug") {
		level = "debug"
	}

	cfg, err := config.Load()
	if err != nil {
		return fatal(err)
	}
	if token := c.String("token"); token != "" {
		cfg.GoogleAPIKey = token
	}

	if err = logging.Setup(cfg.LogDirectory, true, false, level); err != nil {
		return cli.Exit(fmt.Sprintf("error configuring logging: %v", err), 2)
	}

	if cfg.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Release: version.Version}); err != nil {
			logrus.Warn("Unable to initialize error reporting: ", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	custom, err := metadata.ParseKeyValues(c.StringSlice("metadata"))
	if err != nil {
		return fatal(err)
	}

	ctx := rcontext.Initial(cfg)
	report, err := runner.New(cfg).Run(ctx, runner.Options{
		Url:                c.Args().First(),
		DestBase:           c.String("dest"),
		IdentifierOverride: c.String("identifier"),
		Collection:         c.String("collection"),
		Mediatype:          c.String("mediatype"),
		Custom:             custom,
		Flatten:            c.Bool("no-folders"),
		DryRun:             c.Bool("dry-run"),
		Keep:               c.Bool("keep"),
	})
	if err != nil {
		sentry.CaptureException(err)
		return fatal(err)
	}

	if report.DryRun {
		ctx.Log.Infof("[dry run] would create item %s", report.Identifier)
		return nil
	}
	if report.Skipped {
		ctx.Log.Infof("Item already archived: %s", report.ItemUrl)
	}
	fmt.Println("Item URL:", report.ItemUrl)
	return nil
}

// fatal wraps a pipeline error with a remediation hint where one is known and
// produces the command's failure exit code.
func fatal(err error) cli.ExitCoder {
	msg := err.Error()
	switch {
	case errors.Is(err, common.ErrNotConfigured):
		msg += "\nArchive.org credentials are read from ~/.config/ia.ini or IA_ACCESS_KEY/IA_SECRET_KEY."
	case errors.Is(err, common.ErrUnsupportedUrl):
		msg += "\nSupported URLs: Google Drive files and folders, Google Docs, Mega.nz files and folders."
	case errors.Is(err, common.ErrPartialUpload):
		msg += "\nRe-running the same command retries the item; already-archived items are skipped."
	}
	return cli.Exit(msg, 2)
}
