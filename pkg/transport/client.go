package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/types"
)

// ErrNotHandled is returned when the bridge did not recognise the URL
var ErrNotHandled = errors.New("url not handled by bridge")

const DefaultTimeout = 10 * time.Second

// HTTPOpener forwards URLs to a walletlink bridge over HTTP
type HTTPOpener struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPOpener(baseURL string, httpClient *http.Client) *HTTPOpener {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPOpener{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// buildRequestURL constructs a full URL for a bridge endpoint
func buildRequestURL(baseURL, path string) string {
	return fmt.Sprintf("%s%s", baseURL, path)
}

// Open posts u to the bridge once. There is no retry.
func (h *HTTPOpener) Open(ctx context.Context, u *url.URL) error {
	if u == nil {
		return fmt.Errorf("url cannot be nil")
	}

	data, err := json.Marshal(types.OpenRequest{URL: u.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal open request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, buildRequestURL(h.baseURL, "/open"), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach bridge: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body types.OpenResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotHandled
	default:
		if body.Error != "" {
			return fmt.Errorf("bridge returned status %d: %s", resp.StatusCode, body.Error)
		}
		return fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}
}
