// Package runner orchestrates a single mirroring run: detect the source,
// download, derive metadata, and upload the result as an archive.org item.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/t2bot/iadrive/archive"
	"github.com/t2bot/iadrive/archive/ias3"
	"github.com/t2bot/iadrive/common"
	"github.com/t2bot/iadrive/common/config"
	"github.com/t2bot/iadrive/common/rcontext"
	"github.com/t2bot/iadrive/fileset"
	"github.com/t2bot/iadrive/metadata"
	"github.com/t2bot/iadrive/metadata/dates"
	"github.com/t2bot/iadrive/sources"
	"github.com/t2bot/iadrive/sources/drive"
	"github.com/t2bot/iadrive/sources/gdocs"
	"github.com/t2bot/iadrive/sources/mega"
	"github.com/t2bot/iadrive/util"
)

// Options are the per-run knobs, largely a mirror of the CLI flags.
type Options struct {
	Url                string
	DestBase           string // empty means a fresh directory under the system temp dir
	IdentifierOverride string
	Collection         string
	Mediatype          string
	Custom             metadata.Custom
	Flatten            bool // discard folder paths in upload keys; default preserves them
	DryRun             bool
	Keep               bool // keep the downloaded tree even after a successful upload
}

// Report summarizes a finished run for the caller.
type Report struct {
	Identifier string
	ItemUrl    string
	Skipped    bool
	DryRun     bool
	FileCount  int
	TotalBytes uint64
	LocalRoot  string // empty when the tree was cleaned up
}

// Runner holds the run collaborators. The zero value is not usable; construct
// with New. Fields are exposed so tests can substitute fakes.
type Runner struct {
	Config   *config.Config
	Sources  []sources.Source
	Store    archive.Storage
	Resolver *dates.Resolver
}

func New(cfg *config.Config) *Runner {
	return &Runner{
		Config: cfg,
		// Ordered: Docs links would otherwise also match the Drive matcher.
		Sources:  []sources.Source{gdocs.New(), mega.New(), drive.New()},
		Store:    ias3.NewClient(cfg.IA.AccessKey, cfg.IA.SecretKey),
		Resolver: dates.NewResolver(),
	}
}

// Run executes the full pipeline for one URL. Download failures, empty content
// and upload failures all surface as errors; an already-archived item is a
// success with Skipped set.
func (r *Runner) Run(ctx rcontext.RequestContext, opts Options) (report *Report, err error) {
	// Remote content exercises third-party parsers; a panic in one should fail
	// the run, not the process.
	defer func() {
		if rec := recover(); rec != nil {
			report = nil
			err = util.PanicToError(rec)
		}
	}()

	src, err := sources.Detect(r.Sources, opts.Url)
	if err != nil {
		return nil, err
	}
	ctx = ctx.LogWithFields(logrus.Fields{"source": src.Name()})
	ctx.Log.Infof("Using source: %s", src.Name())

	destBase := opts.DestBase
	if destBase == "" {
		destBase = filepath.Join(os.TempDir(), "iadrive-"+uuid.NewString())
	}
	if err = os.MkdirAll(destBase, 0755); err != nil {
		return nil, errors.Wrapf(err, "runner: unable to create %s", destBase)
	}

	dl, err := src.Download(ctx, opts.Url, destBase)
	if err != nil {
		return nil, err
	}

	set, err := fileset.Enumerate(dl.Root, dl.ContentID, dl.Kind)
	if err != nil {
		return nil, err
	}
	if err = set.RequireFiles(); err != nil {
		return nil, errors.Wrap(err, "nothing was downloaded")
	}

	var total uint64
	for _, f := range set.Files {
		total += f.SizeBytes
	}
	ctx.Log.Infof("Downloaded %d file(s), %s", len(set.Files), humanize.Bytes(total))

	date, year := r.Resolver.OldestDate(ctx, dl.Root)

	md, err := metadata.Synthesize(ctx, set, metadata.Options{
		Kind:        dl.Kind,
		ContentID:   dl.ContentID,
		OriginalUrl: opts.Url,
		DocType:     dl.DocType,
		RootName:    dl.Title,
		Creator:     r.resolveCreator(ctx, dl),
		Date:        date,
		Year:        year,
		Collection:  firstNonEmpty(opts.Collection, r.Config.DefaultCollection),
		Mediatype:   firstNonEmpty(opts.Mediatype, r.Config.DefaultMediatype),
	}, opts.Custom)
	if err != nil {
		return nil, err
	}

	identifier := sources.Identifier(dl, opts.Url)
	if opts.IdentifierOverride != "" {
		identifier = opts.IdentifierOverride
	}

	uploader := &archive.Uploader{
		Store:   r.Store,
		Flatten: opts.Flatten,
		DryRun:  opts.DryRun,
	}
	result, err := uploader.Upload(ctx, set, identifier, md)
	if err != nil {
		return nil, err
	}

	report = &Report{
		Identifier: result.Identifier,
		ItemUrl:    "https://archive.org/details/" + result.Identifier,
		Skipped:    result.Skipped,
		DryRun:     result.DryRun,
		FileCount:  len(set.Files),
		TotalBytes: total,
		LocalRoot:  dl.Root,
	}

	// The downloaded tree is only disposable once the item is safely uploaded.
	if !opts.Keep && !opts.DryRun {
		if err := os.RemoveAll(dl.Root); err != nil {
			ctx.Log.Warnf("Unable to clean up %s: %v", dl.Root, err)
		} else {
			report.LocalRoot = ""
		}
	}

	return report, nil
}

// resolveCreator looks up Drive file owners when an API key is available. Other
// sources have no ownership concept, so the metadata default applies.
func (r *Runner) resolveCreator(ctx rcontext.RequestContext, dl *sources.DownloadResult) string {
	if dl.Kind != common.KindDriveFile && dl.Kind != common.KindDriveFolder {
		return ""
	}
	owners := drive.LookupOwners(ctx, dl.ContentID, r.Config.GoogleAPIKey)
	switch len(owners) {
	case 0:
		return ""
	case 1:
		return owners[0]
	default:
		return fmt.Sprintf("{%s}", strings.Join(owners, ", "))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
