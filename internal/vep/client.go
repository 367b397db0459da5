// Package vep is a client for the Ensembl Variant Effect Predictor REST API.
package vep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Defaults for the public Ensembl endpoint.
const (
	DefaultBaseURL   = "https://rest.ensembl.org"
	DefaultBatchSize = 50
	DefaultTimeout   = 60 * time.Second
	endpoint         = "/vep/human/id/"
)

// ServiceError reports a failed call to the VEP endpoint: a non-2xx status
// or a body that is not the expected JSON.
type ServiceError struct {
	Status int    // HTTP status, 0 when the request never got a response
	Body   string // response excerpt or cause
}

func (e *ServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("vep service error: %s", e.Body)
	}
	return fmt.Sprintf("vep service error %d: %s", e.Status, e.Body)
}

// Result is one entry of the VEP response array.
type Result struct {
	ID                     string                  `json:"id"`
	Input                  string                  `json:"input"`
	TranscriptConsequences []TranscriptConsequence `json:"transcript_consequences"`
}

// TranscriptConsequence is the predicted effect on one transcript.
type TranscriptConsequence struct {
	TranscriptID     string   `json:"transcript_id"`
	VariantAllele    string   `json:"variant_allele"`
	Impact           string   `json:"impact"`
	ConsequenceTerms []string `json:"consequence_terms"`
	GeneID           string   `json:"gene_id"`
	GeneSymbol       string   `json:"gene_symbol"`
	Biotype          string   `json:"biotype"`
}

type request struct {
	IDs []string `json:"ids"`
}

// Client posts identifier batches to the VEP endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	retryWait  time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries retries transient failures (network errors, 429 and 5xx)
// up to n times with exponential backoff. The default is no retry.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithRetryWait sets the initial backoff interval.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the VEP service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retryWait:  500 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup annotates one batch of variant identifiers.
func (c *Client) Lookup(ctx context.Context, ids []string) ([]Result, error) {
	body, err := json.Marshal(request{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var results []Result
	attempt := 0
	op := func() error {
		attempt++
		res, err := c.post(ctx, body)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			c.logger.Debug("vep request failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		results = res
		return nil
	}

	if c.maxRetries == 0 {
		if err := op(); err != nil {
			return nil, unwrapPermanent(err)
		}
		return results, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)); err != nil {
		return nil, unwrapPermanent(err)
	}
	return results, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ServiceError{Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ServiceError{Status: resp.StatusCode, Body: string(excerpt)}
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &ServiceError{Status: resp.StatusCode, Body: "decode response: " + err.Error()}
	}
	return results, nil
}

func retryable(err error) bool {
	var se *ServiceError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == 0 || se.Status == http.StatusTooManyRequests || se.Status >= 500
}

func unwrapPermanent(err error) error {
	var pe *backoff.PermanentError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
