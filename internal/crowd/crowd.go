// Package crowd is the client side of the crowdsourcing provider: it creates
// or updates the per-category jobs and submits units of work for newly
// uploaded records. Judgments flow back through the webhook, not through this
// client.
package crowd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"melaknowma/internal/types"
)

// Client talks to the provider's HTTP API. Calls are rate limited so a bulk
// backfill of records cannot trip the provider's quota.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Options configures the provider client.
type Options struct {
	BaseURL string
	APIKey  string
	// RequestsPerSecond bounds outbound calls. Zero means 5/s.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// New creates a provider client.
func New(opts Options, logger *zap.Logger) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// unit is the work payload the provider echoes back in its webhook: the
// record id and where to fetch the image.
type unit struct {
	ImageID string `json:"image_id"`
	URL     string `json:"url"`
}

// jobSettings is the provider's job resource shape.
type jobSettings struct {
	Title        string `json:"title"`
	Instructions string `json:"instructions"`
}

// UpsertJob creates or updates a job with the given settings on the
// provider's jobs endpoint and returns its external job id, which must then
// be mapped to a category via the job configuration before results for it
// resolve.
func (c *Client) UpsertJob(ctx context.Context, title, instructions string) (string, error) {
	body, err := json.Marshal(map[string]jobSettings{"job": {Title: title, Instructions: instructions}})
	if err != nil {
		return "", fmt.Errorf("encoding job settings: %w", err)
	}
	endpoint := fmt.Sprintf("%s/jobs.json?key=%s", c.baseURL, c.apiKey)
	resp, err := c.post(ctx, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("upserting job %q: %w", title, err)
	}

	// The provider sends the id as a number or a string depending on the
	// endpoint version.
	var out struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("decoding job response: %w", err)
	}
	jobID, err := rawID(out.ID)
	if err != nil || jobID == "" {
		return "", fmt.Errorf("job response without usable id: %s", resp)
	}
	c.logger.Info("job upserted", zap.String("title", title), zap.String("job_id", jobID))
	return jobID, nil
}

func rawID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", err
	}
	return num.String(), nil
}

// UploadUnit submits one unit of work to the given external job.
func (c *Client) UploadUnit(ctx context.Context, jobID, recordID, dataRef string) error {
	body, err := json.Marshal(unit{ImageID: recordID, URL: dataRef})
	if err != nil {
		return fmt.Errorf("encoding unit: %w", err)
	}
	endpoint := fmt.Sprintf("%s/jobs/%s/units.json?key=%s", c.baseURL, jobID, c.apiKey)
	if _, err := c.post(ctx, endpoint, body); err != nil {
		return fmt.Errorf("uploading unit for record %s to job %s: %w", recordID, jobID, err)
	}
	return nil
}

// Push submits one unit per configured category for a record. A category
// with no configured job is skipped: judgments for it can be backfilled by
// reconfiguring and re-pushing, and the record simply stays incomplete until
// then.
func (c *Client) Push(ctx context.Context, cfg map[types.Category]string, rec *types.Record) error {
	for _, category := range types.Categories {
		jobID, ok := cfg[category]
		if !ok {
			c.logger.Warn("no job configured for category, skipping push",
				zap.String("category", string(category)),
				zap.String("record_id", rec.ID))
			continue
		}
		if err := c.UploadUnit(ctx, jobID, rec.ID, rec.DataRef); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, snippet)
	}
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading provider response: %w", err)
	}
	return out, nil
}
