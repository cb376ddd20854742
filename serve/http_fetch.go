package serve

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// fetchUpstream issues a GET against url and returns the body only on a 2xx
// response; any other status or a transport/deadline error is returned as
// err so callers can distinguish "fall back, no error" paths from hard
// failures by inspecting ctx.Err() themselves.
func fetchUpstream(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	body, status, err := fetchUpstreamStatus(ctx, client, url)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, errors.Errorf("upstream returned status %d", status)
	}
	return body, nil
}

// fetchUpstreamStatus issues a GET against url and returns the body and
// status code. err is non-nil only for transport-level failures (including
// context deadline/cancellation) — a non-2xx response is not itself an
// error here, so callers that need to distinguish "not found" from
// "couldn't even talk to upstream" can do so via status.
func fetchUpstreamStatus(ctx context.Context, client *http.Client, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build upstream request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "upstream request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read upstream body")
	}
	return body, resp.StatusCode, nil
}
