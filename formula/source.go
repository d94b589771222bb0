package formula

import "strings"

// Source tells where the source tree of a formula comes from. Exactly one
// of URL (a checksummed archive) or Repo (a repository clone) is set. A
// release clone is pinned by Tag, Revision or both; an unpinned clone tracks
// the repository head.
type Source struct {
	URL    string
	SHA256 string

	Repo     string
	Tag      string
	Revision string
}

// IsArchive reports whether the source is a downloadable archive.
func (s Source) IsArchive() bool {
	return s.URL != ""
}

// IsRepo reports whether the source is a repository clone.
func (s Source) IsRepo() bool {
	return s.Repo != ""
}

// Ref returns the repository revision to check out. An unpinned repository
// tracks its default branch head.
func (s Source) Ref() string {
	switch {
	case s.Revision != "":
		return s.Revision
	case s.Tag != "":
		return s.Tag
	}
	return "HEAD"
}

// Pinned reports whether a repository source names a tag or revision.
func (s Source) Pinned() bool {
	return s.Tag != "" || s.Revision != ""
}

func (s Source) String() string {
	if s.IsArchive() {
		return s.URL
	}
	if !s.Pinned() {
		return s.Repo
	}
	return s.Repo + "@" + s.Ref()
}

func isSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	return strings.Trim(strings.ToLower(s), "0123456789abcdef") == ""
}

func isHex(s string) bool {
	return s != "" && strings.Trim(strings.ToLower(s), "0123456789abcdef") == ""
}
