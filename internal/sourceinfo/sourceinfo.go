// Package sourceinfo infers resolution and bounds of data sources so a
// state without explicit dimensions or position can still be centered.
package sourceinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrUnsupported is returned for source URLs the inferrer cannot probe.
var ErrUnsupported = errors.New("unsupported source")

// Info describes a volume source.
type Info struct {
	Type       string
	Resolution []float64
	// Bounds is [lower, upper] in voxels at Resolution.
	Bounds [2][]float64
}

// Inferrer fetches source info. Implementations must honor ctx.
type Inferrer interface {
	Info(ctx context.Context, url string) (*Info, error)
}

// Config tunes an HTTPInferrer.
type Config struct {
	Timeout   time.Duration
	CacheSize int
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second, CacheSize: 100}
}

// HTTPInferrer reads precomputed and graphene info files over HTTP.
type HTTPInferrer struct {
	client  *http.Client
	timeout time.Duration
	cache   *lru.Cache[string, *Info]
}

// NewHTTPInferrer creates an inferrer. A nil client uses
// http.DefaultClient.
func NewHTTPInferrer(client *http.Client, cfg Config) (*HTTPInferrer, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	cache, err := lru.New[string, *Info](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create info cache: %w", err)
	}
	return &HTTPInferrer{client: client, timeout: cfg.Timeout, cache: cache}, nil
}

type infoFile struct {
	Type   string `json:"type"`
	Scales []struct {
		Resolution  []float64 `json:"resolution"`
		VoxelOffset []float64 `json:"voxel_offset"`
		Size        []float64 `json:"size"`
	} `json:"scales"`
}

// Info implements Inferrer. Successful lookups are cached by URL.
func (h *HTTPInferrer) Info(ctx context.Context, url string) (*Info, error) {
	if info, ok := h.cache.Get(url); ok {
		return info, nil
	}
	endpoint, err := InfoURL(url)
	if err != nil {
		return nil, err
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build info request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}

	var f infoFile
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("parse info %s: %w", endpoint, err)
	}
	info := &Info{Type: f.Type}
	if len(f.Scales) > 0 {
		s := f.Scales[0]
		info.Resolution = s.Resolution
		if len(s.Size) == len(s.Resolution) {
			lo := make([]float64, len(s.Size))
			hi := make([]float64, len(s.Size))
			for i := range s.Size {
				if i < len(s.VoxelOffset) {
					lo[i] = s.VoxelOffset[i]
				}
				hi[i] = lo[i] + s.Size[i]
			}
			info.Bounds = [2][]float64{lo, hi}
		}
	}
	h.cache.Add(url, info)
	return info, nil
}

// InfoURL maps a neuroglancer source URL to the HTTPS location of its
// info file.
func InfoURL(source string) (string, error) {
	u := source
	for _, p := range []string{"precomputed://", "graphene://", "n5://", "zarr://"} {
		u = strings.TrimPrefix(u, p)
	}
	u = strings.TrimPrefix(u, "middleauth+")
	switch {
	case strings.HasPrefix(u, "gs://"):
		u = "https://storage.googleapis.com/" + strings.TrimPrefix(u, "gs://")
	case strings.HasPrefix(u, "s3://"):
		rest := strings.TrimPrefix(u, "s3://")
		bucket, path, _ := strings.Cut(rest, "/")
		u = "https://" + bucket + ".s3.amazonaws.com/" + path
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"):
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, source)
	}
	return strings.TrimSuffix(u, "/") + "/info", nil
}
