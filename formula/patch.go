package formula

import "path"

// Patch is a diff applied to the fetched source tree before configuring.
type Patch struct {
	URL     string
	SHA256  string
	Applies Predicate
	Strip   int // leading path components removed by the patch tool
}

// Name returns the last element of the patch URL.
func (p Patch) Name() string {
	return path.Base(p.URL)
}
