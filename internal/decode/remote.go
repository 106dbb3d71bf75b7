package decode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// RemoteClient submits the original image bytes to the external decode
// collaborator. It is only ever wired into the one-shot chain; the live
// loop must stay local.
type RemoteClient struct {
	url    string
	client *http.Client
}

// NewRemoteClient returns nil when no URL is configured, which the chain
// treats as the capability being absent.
func NewRemoteClient(url string, timeout time.Duration) *RemoteClient {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (r *RemoteClient) Name() string { return "remote" }

func (r *RemoteClient) TryDecode(ctx context.Context, frame Frame) (string, error) {
	if r == nil || len(frame.Raw) == 0 {
		return "", nil
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "frame")
	if err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(frame.Raw); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("remote decode returned status %d", resp.StatusCode)
	}

	var payload struct {
		Code  string   `json:"code"`
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding remote response: %w", err)
	}
	if payload.Code != "" {
		return payload.Code, nil
	}
	if len(payload.Codes) > 0 {
		return payload.Codes[0], nil
	}
	return "", nil
}
