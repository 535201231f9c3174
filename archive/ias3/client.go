// Package ias3 is a minimal client for archive.org's S3-like upload API. The
// dialect is close enough to S3 to be confusing and far enough that standard S3
// SDKs cannot speak it: authorization is `LOW access:secret` and item metadata
// travels as x-archive-meta-* request headers.
package ias3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const DefaultEndpoint = "https://s3.us.archive.org"
const DefaultMetadataEndpoint = "https://archive.org"

// Per-file transport retries. Kept small; the orchestrator treats the file as
// failed after these are exhausted and moves on.
const defaultRetries = 3

type Client struct {
	AccessKey        string
	SecretKey        string
	Endpoint         string
	MetadataEndpoint string
	HTTP             *http.Client
	Retries          uint64
}

func NewClient(accessKey string, secretKey string) *Client {
	return &Client{
		AccessKey:        accessKey,
		SecretKey:        secretKey,
		Endpoint:         DefaultEndpoint,
		MetadataEndpoint: DefaultMetadataEndpoint,
		HTTP:             &http.Client{Timeout: 0}, // uploads can be long; context handles cancellation
		Retries:          defaultRetries,
	}
}

// Exists reports whether an item already exists under identifier. The metadata
// endpoint returns an empty object for unknown identifiers.
func (c *Client) Exists(ctx context.Context, identifier string) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.MetadataEndpoint+"/metadata/"+url.PathEscape(identifier), nil)
	if err != nil {
		return false, errors.Wrap(err, "ias3: error preparing metadata request")
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "ias3: error checking for existing item")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return false, errors.Errorf("ias3: unexpected status %d checking for existing item", res.StatusCode)
	}

	body := struct {
		Metadata map[string]interface{} `json:"metadata"`
	}{}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return false, errors.Wrap(err, "ias3: error decoding metadata response")
	}
	return len(body.Metadata) > 0, nil
}

// PutFile uploads one local file under identifier/key, retrying transient
// failures. Client errors (4xx) are not retried.
func (c *Client) PutFile(ctx context.Context, identifier string, key string, localPath string, headers map[string][]string) error {
	op := func() error {
		return c.putOnce(ctx, identifier, key, localPath, headers)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.Retries), ctx)
	return backoff.Retry(op, policy)
}

func (c *Client) putOnce(ctx context.Context, identifier string, key string, localPath string, headers map[string][]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return backoff.Permanent(errors.Wrapf(err, "ias3: unable to open %s", localPath))
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return backoff.Permanent(errors.Wrapf(err, "ias3: unable to stat %s", localPath))
	}

	target := c.Endpoint + "/" + url.PathEscape(identifier) + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return backoff.Permanent(errors.Wrap(err, "ias3: error preparing upload request"))
	}
	req.ContentLength = fi.Size()
	req.Header.Set("Authorization", fmt.Sprintf("LOW %s:%s", c.AccessKey, c.SecretKey))
	req.Header.Set("x-archive-auto-make-bucket", "1")
	req.Header.Set("x-archive-queue-derive", "0")
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "ias3: error uploading %s", key)
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	uploadErr := errors.Errorf("ias3: upload of %s failed with status %d: %s", key, res.StatusCode, string(snippet))
	if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(uploadErr)
	}
	return uploadErr
}

// escapeKey percent-encodes an upload key while keeping its slashes, so nested
// keys stay nested.
func escapeKey(key string) string {
	u := url.URL{Path: key}
	return u.EscapedPath()
}

// MetadataHeaders converts an item metadata mapping into x-archive-meta-*
// request headers. List values become numbered x-archive-metaNN-* headers;
// non-ASCII values use the service's uri() encoding.
func MetadataHeaders(fields map[string]interface{}) map[string][]string {
	headers := make(map[string][]string)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			headers["x-archive-meta-"+k] = []string{encodeHeaderValue(v)}
		case []string:
			for i, item := range v {
				name := fmt.Sprintf("x-archive-meta%02d-%s", i+1, k)
				headers[name] = []string{encodeHeaderValue(item)}
			}
		default:
			headers["x-archive-meta-"+k] = []string{encodeHeaderValue(fmt.Sprint(v))}
		}
	}
	return headers
}

func encodeHeaderValue(v string) string {
	for _, r := range v {
		if r > 126 || r < 32 {
			return "uri(" + url.PathEscape(v) + ")"
		}
	}
	return v
}
