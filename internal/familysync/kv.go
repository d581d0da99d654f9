package familysync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// KVRemote talks to a plain HTTP key-value bucket: PUT stores a value at
// <base>/<key>, GET reads it back and 404 means absent.
type KVRemote struct {
	baseURL    string
	httpClient *http.Client
}

func NewKVRemote(baseURL string) *KVRemote {
	return &KVRemote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (k *KVRemote) endpoint(familyID string) string {
	return k.baseURL + "/" + url.PathEscape(familyID)
}

func (k *KVRemote) Push(ctx context.Context, familyID string, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal family document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, k.endpoint(familyID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("kv put: status=%d body=%s", resp.StatusCode, body)
	}
	return nil
}

func (k *KVRemote) Pull(ctx context.Context, familyID string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.endpoint(familyID), nil)
	if err != nil {
		return Document{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Document{}, ErrNoDocument
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Document{}, fmt.Errorf("kv get: status=%d body=%s", resp.StatusCode, body)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode family document: %w", err)
	}
	return doc, nil
}
