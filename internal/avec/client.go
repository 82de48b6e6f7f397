// Package avec reads the service catalog report from the Avec salon
// management API.
package avec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Simplici0/salon-margin/internal/catalog"
)

// DefaultReportURL is the service catalog report (0033).
const DefaultReportURL = "https://api.avec.beauty/reports/0033?limit=250"

const (
	defaultTimeout = 30 * time.Second
	// defaultMaxPages bounds paging against an upstream that never reports
	// the last page.
	defaultMaxPages = 400
)

// StatusError is returned in Result.Err when a page answers with a non-200
// status.
type StatusError struct {
	Page int
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("avec: page %d returned status %d: %s", e.Page, e.Code, e.Body)
}

// Result is the outcome of Fetch. Err is set when paging stopped early; the
// rows fetched before the failure are still in Records.
type Result struct {
	Records []catalog.RawRecord
	Pages   int
	Err     error
}

// Complete reports whether every page was read.
func (r Result) Complete() bool {
	return r.Err == nil
}

type reportEnvelope struct {
	Data struct {
		Report struct {
			Result  []catalog.RawRecord `json:"result"`
			HasMore bool                `json:"hasMore"`
		} `json:"report"`
	} `json:"data"`
}

// Client pages through one report endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxPages   int
	log        zerolog.Logger
}

// NewClient builds a client for baseURL. A nil httpClient gets a default one
// with a 30s timeout.
func NewClient(baseURL, token string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		maxPages:   defaultMaxPages,
		log:        log.With().Str("component", "avec").Logger(),
	}
}

// Fetch reads every page starting at 1 until the report says there is no
// more data or a page comes back empty. Failures never discard what was
// already read.
func (c *Client) Fetch(ctx context.Context) Result {
	res := Result{Records: []catalog.RawRecord{}}
	if c.token == "" {
		c.log.Warn().Msg("no authorization token configured, skipping fetch")
		return res
	}

	for page := 1; ; page++ {
		if page > c.maxPages {
			res.Err = fmt.Errorf("avec: report still has more data after %d pages", c.maxPages)
			c.log.Warn().Err(res.Err).Int("records", len(res.Records)).Msg("stopped paging report")
			return res
		}

		rows, hasMore, err := c.fetchPage(ctx, page)
		if err != nil {
			c.log.Warn().Err(err).Int("page", page).Int("records", len(res.Records)).Msg("stopped paging report")
			res.Err = err
			return res
		}

		res.Records = append(res.Records, rows...)
		res.Pages = page
		c.log.Debug().Int("page", page).Int("rows", len(rows)).Bool("has_more", hasMore).Msg("report page read")

		if !hasMore {
			return res
		}
		if len(rows) == 0 {
			c.log.Warn().Int("page", page).Msg("empty page reported more data, stopping")
			return res
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]catalog.RawRecord, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PageURL(c.baseURL, page), nil)
	if err != nil {
		return nil, false, fmt.Errorf("avec: create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("avec: request page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, &StatusError{Page: page, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var env reportEnvelope
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, false, fmt.Errorf("avec: decode page %d: %w", page, err)
	}

	return env.Data.Report.Result, env.Data.Report.HasMore, nil
}

// PageURL appends the page parameter to base, joining with & when base
// already has a query string.
func PageURL(base string, page int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "page=" + strconv.Itoa(page)
}
