package viewer

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DefaultSite is used when a state names no site.
const DefaultSite = "spelunker"

// Site is a neuroglancer deployment a state can be opened in.
type Site struct {
	Name string
	URL  string
	// RewriteGraphene adds the middleauth access prefix to graphene
	// sources, as CAVE-backed deployments require.
	RewriteGraphene bool
}

// Sites is a registry of deployments. The zero value is empty; use
// DefaultSites for the built-in table.
type Sites struct {
	byName map[string]Site
}

// DefaultSites returns a fresh registry with the built-in deployments.
func DefaultSites() *Sites {
	return &Sites{byName: map[string]Site{
		"spelunker": {Name: "spelunker", URL: "https://spelunker.cave-explorer.org/", RewriteGraphene: true},
		"google":    {Name: "google", URL: "https://neuroglancer-demo.appspot.com/"},
	}}
}

// Add registers a site. Names must be new.
func (s *Sites) Add(site Site) error {
	if s.byName == nil {
		s.byName = map[string]Site{}
	}
	if _, ok := s.byName[site.Name]; ok {
		return fmt.Errorf("site %q already exists", site.Name)
	}
	if site.URL == "" {
		return fmt.Errorf("site %q has no url", site.Name)
	}
	s.byName[site.Name] = site
	return nil
}

// Lookup finds a site; the empty name means DefaultSite.
func (s *Sites) Lookup(name string) (Site, error) {
	if name == "" {
		name = DefaultSite
	}
	site, ok := s.byName[name]
	if !ok {
		return Site{}, fmt.Errorf("site %q not found, available: %s", name, strings.Join(s.Names(), ", "))
	}
	return site, nil
}

// Names lists registered site names in sorted order.
func (s *Sites) Names() []string {
	return slices.Sorted(maps.Keys(s.byName))
}

// Rewrite applies the site's access prefix rules to a source URL.
func (site Site) Rewrite(url string, image bool) string {
	if !site.RewriteGraphene || !strings.HasPrefix(url, "graphene://") {
		return url
	}
	rest := strings.TrimPrefix(url, "graphene://")
	if !strings.HasPrefix(rest, "https://") && !strings.HasPrefix(rest, "http://") {
		return url
	}
	if image {
		return "precomputed://middleauth+" + rest
	}
	return "graphene://middleauth+" + rest
}
