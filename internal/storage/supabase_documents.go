package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SupabaseBackend talks to a hosted bucket API (upload / public URL / signed
// URL / remove), keyed by <propertyId>/<filename>. One call per operation, no
// retries.
type SupabaseBackend struct {
	client  *resty.Client
	baseURL string
}

func NewSupabaseBackend(baseURL, apiKey string) *SupabaseBackend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("apikey", apiKey).
		SetHeader("Authorization", "Bearer "+apiKey)
	return &SupabaseBackend{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (b *SupabaseBackend) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(data).
		Post("/storage/v1/object/" + bucket + "/" + key)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("upload failed: status %d", resp.StatusCode())
	}
	return nil
}

func (b *SupabaseBackend) PublicURL(bucket, key string) string {
	return b.baseURL + "/storage/v1/object/public/" + bucket + "/" + key
}

func (b *SupabaseBackend) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"expiresIn": int(ttl.Seconds())}).
		Post("/storage/v1/object/sign/" + bucket + "/" + key)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("sign failed: status %d", resp.StatusCode())
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", fmt.Errorf("sign returned malformed body: %w", err)
	}
	url := extractURL(payload)
	if url == "" {
		return "", fmt.Errorf("sign returned no url")
	}
	if strings.HasPrefix(url, "/") {
		url = b.baseURL + "/storage/v1" + url
	}
	return url, nil
}

func (b *SupabaseBackend) Remove(ctx context.Context, bucket, key string) error {
	resp, err := b.client.R().
		SetContext(ctx).
		Delete("/storage/v1/object/" + bucket + "/" + key)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("remove failed: status %d", resp.StatusCode())
	}
	return nil
}

// extractURL is the one place that normalizes the backend's varying response
// shapes ("signedURL", "signedUrl", "url", sometimes nested under "data") to
// a single string-or-absent result.
func extractURL(payload map[string]any) string {
	for _, k := range []string{"signedURL", "signedUrl", "url"} {
		if v, ok := payload[k].(string); ok && v != "" {
			return v
		}
	}
	if nested, ok := payload["data"].(map[string]any); ok {
		return extractURL(nested)
	}
	return ""
}
