package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MaxURLLength is the longest link ToURL will produce.
const MaxURLLength = 1_750_000

var (
	ErrURLTooLong  = errors.New("state url too long")
	ErrRemoteState = errors.New("state is stored remotely")
)

// ToURL encodes the state into <base>#!<percent-encoded JSON>. An empty
// base uses the state's site.
func (s *State) ToURL(ctx context.Context, base string) (string, error) {
	b, err := s.ToJSON(ctx)
	if err != nil {
		return "", err
	}
	if base == "" {
		site, err := s.site()
		if err != nil {
			return "", err
		}
		base = site.URL
	}
	u := EncodeURL(base, b)
	if len(u) > MaxURLLength {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrURLTooLong, len(u), MaxURLLength)
	}
	return u, nil
}

// EncodeURL appends a JSON document to base as a #! fragment.
func EncodeURL(base string, doc []byte) string {
	return strings.TrimSuffix(base, "#") + "#!" + url.PathEscape(string(doc))
}

// ParseURL decodes the document from a state URL. Links that point at an
// uploaded state return ErrRemoteState with the state location.
func ParseURL(raw string) (map[string]any, error) {
	_, frag, ok := strings.Cut(raw, "#!")
	if !ok {
		return nil, fmt.Errorf("no #! fragment in url")
	}
	decoded, err := url.PathUnescape(frag)
	if err != nil {
		return nil, fmt.Errorf("unescape fragment: %w", err)
	}
	decoded = strings.TrimSpace(decoded)
	if !strings.HasPrefix(decoded, "{") {
		return nil, fmt.Errorf("%w: %s", ErrRemoteState, strings.TrimPrefix(decoded, "middleauth+"))
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(decoded), &doc); err != nil {
		return nil, fmt.Errorf("parse state json: %w", err)
	}
	return doc, nil
}

// Link returns the inline URL, falling back to an uploaded short link when
// the state is too long and up is not nil.
func (s *State) Link(ctx context.Context, base string, up Uploader) (string, error) {
	u, err := s.ToURL(ctx, base)
	if errors.Is(err, ErrURLTooLong) && up != nil {
		return s.Shorten(ctx, up, base)
	}
	return u, err
}
