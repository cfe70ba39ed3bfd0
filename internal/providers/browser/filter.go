package browser

import "strings"

// Resource classes as reported by the DevTools protocol.
const (
	ResourceImage      = "Image"
	ResourceStylesheet = "Stylesheet"
	ResourceFont       = "Font"
	ResourceMedia      = "Media"
)

// ResourceFilter decides, per outgoing request, whether the page may load
// it. The zero value allows everything.
type ResourceFilter struct {
	blocked map[string]struct{}
}

// BlockResourceTypes returns a filter that aborts the named resource
// classes and lets every other request through.
func BlockResourceTypes(types ...string) ResourceFilter {
	f := ResourceFilter{blocked: make(map[string]struct{}, len(types))}
	for _, t := range types {
		f.blocked[strings.ToLower(t)] = struct{}{}
	}
	return f
}

// AssetFilter blocks images, stylesheets, fonts and media.
func AssetFilter() ResourceFilter {
	return BlockResourceTypes(ResourceImage, ResourceStylesheet, ResourceFont, ResourceMedia)
}

// Blocks reports whether requests of resourceType are aborted.
func (f ResourceFilter) Blocks(resourceType string) bool {
	if len(f.blocked) == 0 {
		return false
	}
	_, ok := f.blocked[strings.ToLower(resourceType)]
	return ok
}

// Empty reports whether the filter lets everything through.
func (f ResourceFilter) Empty() bool {
	return len(f.blocked) == 0
}
