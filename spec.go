package classscan

import (
	"strings"

	"github.com/mattn/go-zglob"
)

// acceptAll is the filter used when no Spec is configured.
type acceptAll struct{}

func (acceptAll) AcceptPath(string) bool { return true }

// GlobSpec is a convenience Spec matching classpath-relative paths against
// include/exclude glob patterns ("**" matches across separators). Excludes
// are checked first; an empty include list accepts everything not excluded.
//
// The zero value accepts all paths.
type GlobSpec struct {
	Include []string
	Exclude []string
}

// AcceptPath implements Spec.
func (s GlobSpec) AcceptPath(relPath string) bool {
	for _, pattern := range s.Exclude {
		if matchGlob(pattern, relPath) {
			return false
		}
	}
	if len(s.Include) == 0 {
		return true
	}
	for _, pattern := range s.Include {
		if matchGlob(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchGlob matches relPath against pattern. zglob treats a trailing "**"
// as a single path segment; "dir/**" must match every path below dir at
// any depth, so the pattern is also tried with an extra "/*" segment.
func matchGlob(pattern, relPath string) bool {
	if ok, err := zglob.Match(pattern, relPath); err == nil && ok {
		return true
	}
	if strings.HasSuffix(pattern, "**") {
		if ok, err := zglob.Match(pattern+"/*", relPath); err == nil && ok {
			return true
		}
	}
	return false
}
