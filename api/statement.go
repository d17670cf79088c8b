package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/programme-lv/contest-client/contest"
)

func newStatementClient(logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = logger
	return rc.StandardClient()
}

// WithStatementClient sets the client used for statement downloads
func WithStatementClient(hc *http.Client) Option {
	return func(c *Client) {
		c.statClient = hc
	}
}

// DownloadStatement copies the statement pdf of a case to w.
// Relative urls are resolved against the api base url.
func (c *Client) DownloadStatement(ctx context.Context, cs contest.Case, w io.Writer) (int64, error) {
	if cs.PdfFileURL == "" {
		return 0, fmt.Errorf("case %s has no statement", cs.CaseID)
	}
	u, err := c.resolve(cs.PdfFileURL)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build statement request: %w", err)
	}
	resp, err := c.statClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download statement: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download statement: invalid status code: %d", resp.StatusCode)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("write statement: %w", err)
	}
	return n, nil
}

func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse statement url: %w", err)
	}
	return base.ResolveReference(r).String(), nil
}
