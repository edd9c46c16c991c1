// Package imgur uploads images to the Imgur anonymous upload API.
package imgur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
)

const DefaultUploadURL = "https://api.imgur.com/3/image"

type Client struct {
	httpClient *http.Client
	uploadURL  string
	clientID   string
}

func NewClient(clientID, uploadURL string, timeout time.Duration) *Client {
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		uploadURL:  uploadURL,
		clientID:   clientID,
	}
}

type uploadResponse struct {
	Data struct {
		Link  string `json:"link"`
		Error any    `json:"error"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// Upload posts data as the "image" form field and returns the hosted link.
// Only a 503 counts as overload and is reported as domain.ErrUploadTransient;
// every other failure is domain.ErrUploadFatal.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "image.jpg")
	if err != nil {
		return "", fmt.Errorf("%w: build form: %v", domain.ErrUploadFatal, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%w: build form: %v", domain.ErrUploadFatal, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: build form: %v", domain.ErrUploadFatal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFatal, err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.clientID)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFatal, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrUploadFatal, err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return "", fmt.Errorf("%w: host returned %d", domain.ErrUploadTransient, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: host returned %d", domain.ErrUploadFatal, resp.StatusCode)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrUploadFatal, err)
	}
	if parsed.Data.Link == "" {
		return "", fmt.Errorf("%w: response has no link", domain.ErrUploadFatal)
	}
	return parsed.Data.Link, nil
}

var _ port.ImageHost = (*Client)(nil)
