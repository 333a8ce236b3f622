package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Uploader stores a state document and returns the URL it can be fetched
// from.
type Uploader interface {
	Upload(ctx context.Context, doc []byte) (string, error)
}

// HTTPUploader posts documents to a state server such as the CAVE
// nglstate service.
type HTTPUploader struct {
	// Endpoint receives POSTs; stored states are served at Endpoint/<id>.
	Endpoint string
	Token    string
	Client   *http.Client
}

// Upload implements Uploader. The response body may be a bare id, a
// quoted id, or an object with an "id" field.
func (u *HTTPUploader) Upload(ctx context.Context, doc []byte) (string, error) {
	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimSuffix(u.Endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/post", bytes.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload state: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("upload state: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	id, err := parseStateID(body)
	if err != nil {
		return "", err
	}
	return endpoint + "/" + id, nil
}

func parseStateID(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil {
		if obj, ok := v.(map[string]any); ok {
			v = obj["id"]
		}
		switch id := v.(type) {
		case json.Number:
			return id.String(), nil
		case string:
			if id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("unrecognized upload response %q", body)
}

// Shorten uploads the state and returns a link that loads it by
// reference. It is never called implicitly.
func (s *State) Shorten(ctx context.Context, up Uploader, base string) (string, error) {
	doc, err := s.ToJSON(ctx)
	if err != nil {
		return "", err
	}
	stateURL, err := up.Upload(ctx, doc)
	if err != nil {
		return "", err
	}
	site, err := s.site()
	if err != nil {
		return "", err
	}
	if base == "" {
		base = site.URL
	}
	if site.RewriteGraphene {
		stateURL = "middleauth+" + stateURL
	}
	return strings.TrimSuffix(base, "#") + "#!" + stateURL, nil
}
