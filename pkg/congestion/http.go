package congestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/travigo/positiontracker/pkg/util"
)

type HTTPEstimator struct {
	URL    string
	Client *http.Client
}

func NewHTTPEstimator(url string) *HTTPEstimator {
	return &HTTPEstimator{
		URL:    url,
		Client: &http.Client{},
	}
}

func (h *HTTPEstimator) Estimate(ctx context.Context, request Request) (*Result, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("congestion estimator returned %s: %s", resp.Status, util.TrimString(string(responseBody), 200))
	}

	var result *Result
	if err := json.Unmarshal(responseBody, &result); err != nil {
		return nil, fmt.Errorf("decoding congestion estimate: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("congestion estimator returned an empty body")
	}

	return result, nil
}
