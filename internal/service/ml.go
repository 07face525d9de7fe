package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
)

const (
	mlServiceName        = "ml"
	regenerateDescriptor = "/v1/descriptors/regenerate"
	rebuildIndexPath     = "/v1/index/rebuild"
)

// MLClient talks to the face recognition service. It regenerates descriptors
// from a photo region and rebuilds the service's similarity index.
type MLClient struct {
	client *resty.Client
	cfg    config.MLConfig
}

var (
	_ integrity.DescriptorGenerator = (*MLClient)(nil)
	_ integrity.IndexRebuilder      = (*MLClient)(nil)
)

// NewMLClient creates a client for the configured ML endpoint.
// Parameters:
//   - cfg: ML service configuration (base URL, API key, timeout, retries).
// Returns:
//   - *MLClient: initialized client.
func NewMLClient(cfg config.MLConfig) *MLClient {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	client.SetRetryCount(cfg.RetryCount)
	client.SetRetryWaitTime(200 * time.Millisecond)
	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		return err != nil || resp.StatusCode() >= http.StatusInternalServerError
	})

	return &MLClient{client: client, cfg: cfg}
}

type regenerateRequest struct {
	PhotoRef string             `json:"photo_ref"`
	BBox     domain.BoundingBox `json:"bbox"`
}

type regenerateResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

type rebuildResponse struct {
	Indexed int    `json:"indexed"`
	Error   string `json:"error,omitempty"`
}

// RegenerateDescriptor computes a new embedding for the face at box on photoRef.
func (c *MLClient) RegenerateDescriptor(ctx context.Context, photoRef string, box domain.BoundingBox) ([]float32, error) {
	var resp regenerateResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(regenerateRequest{PhotoRef: photoRef, BBox: box}).
		SetResult(&resp).
		SetError(&resp).
		Post(c.cfg.Endpoint(regenerateDescriptor))
	if err := checkResponse("regenerate descriptor", httpResp, err, resp.Error); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ml service returned an empty embedding for %s", photoRef)
	}
	return resp.Embedding, nil
}

// RebuildIndex asks the ML service to rebuild its similarity index from the
// current relational descriptors.
func (c *MLClient) RebuildIndex(ctx context.Context) error {
	var resp rebuildResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetResult(&resp).
		SetError(&resp).
		Post(c.cfg.Endpoint(rebuildIndexPath))
	return checkResponse("rebuild index", httpResp, err, resp.Error)
}

// checkResponse maps transport failures and 5xx answers to CollaboratorUnavailable.
// Other non-200 answers are request errors.
func checkResponse(operation string, resp *resty.Response, err error, detail string) error {
	if err != nil {
		return &integrity.CollaboratorUnavailable{Service: mlServiceName, Operation: operation, Err: err}
	}
	status := resp.StatusCode()
	if status == http.StatusOK {
		return nil
	}
	if detail == "" {
		detail = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		return &integrity.CollaboratorUnavailable{
			Service:   mlServiceName,
			Operation: operation,
			Err:       fmt.Errorf("status %d: %s", status, detail),
		}
	}
	return fmt.Errorf("ml %s rejected: status %d: %s", operation, status, detail)
}
