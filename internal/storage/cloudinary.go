// Package storage uploads profile documents and images to a CDN and
// returns the resulting public URL. Only the reference is recorded by
// the verification workflow; serving the asset is the CDN's job.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/veriqo/server/internal/config"
)

// AssetStore uploads a file and returns its public URL.
type AssetStore interface {
	Upload(ctx context.Context, filename string, file io.Reader) (string, error)
}

// CloudinaryStore uploads assets through Cloudinary's unsigned upload
// endpoint.
type CloudinaryStore struct {
	cfg    config.CloudinaryConfig
	client *http.Client
}

// NewCloudinaryStore creates an AssetStore backed by Cloudinary.
func NewCloudinaryStore(cfg config.CloudinaryConfig) *CloudinaryStore {
	return &CloudinaryStore{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

// Upload sends the file to Cloudinary and returns the hosted URL.
func (s *CloudinaryStore) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if s.cfg.CloudName == "" || s.cfg.UploadPreset == "" {
		return "", fmt.Errorf("cloudinary credentials not set in configuration")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("read upload file: %w", err)
	}
	if err := writer.WriteField("upload_preset", s.cfg.UploadPreset); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/auto/upload", s.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload asset: status %d: %s", resp.StatusCode, data)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.SecureURL != "" {
		return parsed.SecureURL, nil
	}
	return parsed.URL, nil
}
