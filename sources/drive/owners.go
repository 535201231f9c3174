package drive

import (
	"context"
	"time"

	googleapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/t2bot/iadrive/common/rcontext"
)

// LookupOwners returns the display names of a file's owners via the Drive API.
// This is best-effort enrichment: no key, an expired timeout, or an API error
// all yield nil.
func LookupOwners(ctx rcontext.RequestContext, fileId string, apiKey string) []string {
	if apiKey == "" || fileId == "" {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc, err := googleapi.NewService(reqCtx, option.WithAPIKey(apiKey))
	if err != nil {
		ctx.Log.Debug("Owner lookup unavailable: ", err)
		return nil
	}

	f, err := svc.Files.Get(fileId).Fields("owners(displayName)").SupportsAllDrives(true).Context(reqCtx).Do()
	if err != nil {
		ctx.Log.Debug("Owner lookup failed: ", err)
		return nil
	}

	var owners []string
	for _, o := range f.Owners {
		if o.DisplayName != "" {
			owners = append(owners, o.DisplayName)
		}
	}
	return owners
}
