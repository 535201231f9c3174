package mega

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/t2bot/iadrive/common/rcontext"
)

const apiBase = "https://g.api.mega.co.nz/cs"

// apiClient speaks MEGA's JSON command API: each request is a one-element
// command array, each response a one-element result array or a bare negative
// error code.
type apiClient struct {
	http *http.Client
	base string
	seq  uint64
}

func (c *apiClient) request(ctx rcontext.RequestContext, query url.Values, cmd interface{}, out interface{}) error {
	payload, err := json.Marshal([]interface{}{cmd})
	if err != nil {
		return errors.Wrap(err, "mega: error encoding api command")
	}

	query.Set("id", fmt.Sprint(atomic.AddUint64(&c.seq, 1)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"?"+query.Encode(), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "mega: error preparing api request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "mega: api request failed")
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 32*1024*1024))
	if err != nil {
		return errors.Wrap(err, "mega: error reading api response")
	}

	// A bare negative integer is a request-level error.
	var code int
	if err = json.Unmarshal(body, &code); err == nil {
		return apiError(code)
	}

	var results []json.RawMessage
	if err = json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		return errors.Errorf("mega: unexpected api response: %.120s", string(body))
	}
	if err = json.Unmarshal(results[0], &code); err == nil {
		return apiError(code)
	}
	return errors.Wrap(json.Unmarshal(results[0], out), "mega: error decoding api result")
}

func apiError(code int) error {
	switch code {
	case -2:
		return errors.New("mega: invalid request arguments")
	case -6, -9:
		return errors.New("mega: content not found (link may be removed)")
	case -16:
		return errors.New("mega: content blocked")
	case -18:
		return errors.New("mega: temporarily unavailable, try again later")
	default:
		return errors.Errorf("mega: api error %d", code)
	}
}

type getResult struct {
	URL   string `json:"g"`
	Size  int64  `json:"s"`
	Attrs string `json:"at"`
}

type nodeList struct {
	Nodes []node `json:"f"`
}

type node struct {
	Handle string `json:"h"`
	Parent string `json:"p"`
	Type   int    `json:"t"` // 0 = file, 1 = folder
	Attrs  string `json:"a"`
	Key    string `json:"k"`
	Size   int64  `json:"s"`
}
