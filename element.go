package classscan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/meigma/classscan/internal/pathutil"
	"github.com/meigma/classscan/jarpool"
)

// Variant tags the traversal strategy backing a classpath element.
type Variant uint8

const (
	VariantDirectory Variant = iota
	VariantArchive
	VariantModule
)

func (v Variant) String() string {
	switch v {
	case VariantDirectory:
		return "directory"
	case VariantArchive:
		return "archive"
	case VariantModule:
		return "module"
	default:
		return "unknown"
	}
}

// elementState tracks the discovery lifecycle. Match lists are exposed only
// once an element reaches stateDiscovered.
type elementState uint8

const (
	stateCreated elementState = iota
	stateDiscovering
	stateDiscovered
	stateSkipped
)

// Element is one directory, archive, or module unit in the ordered search
// path. Implementations form a closed sum: exactly the three variants
// produced by the element factory.
//
// Match lists are write-owned by the element during discovery and become
// read-only once discovery completes; only the masking pass mutates them
// afterwards, in place, never concurrently.
type Element interface {
	// Entry returns the resolved classpath entry backing this element.
	Entry() ResolvedEntry

	// Variant returns the traversal strategy tag.
	Variant() Variant

	// Skipped reports whether discovery failed unrecoverably. A skipped
	// element contributes nothing further to the scan.
	Skipped() bool

	// SkipCause returns the failure that caused the skip, or nil.
	SkipCause() error

	// FileMatches returns all discovered resources, post-mask. Nil until
	// discovery completes.
	FileMatches() []Resource

	// ClassfileMatches returns the subset of FileMatches whose relative
	// path denotes a binary class definition, post-mask.
	ClassfileMatches() []Resource

	// NumClassfileMatches returns the number of classfile matches.
	NumClassfileMatches() int

	// ChildEntries returns classpath entries discovered via this element's
	// own linkage metadata (archive manifest Class-Path references). They
	// extend the classpath externally; this element does not scan them.
	ChildEntries() []ResolvedEntry

	// Close releases the element's backing resources (pooled archive
	// handle, module reader, directory handle). Idempotent; calling it on
	// an element that never completed discovery is a no-op.
	Close() error

	// scanPaths traverses the backing store, populating the match lists.
	// The returned error is non-nil only for cancellation; element-local
	// failures set the skip flag instead.
	scanPaths(ctx context.Context) error

	base() *baseElement
}

// baseElement carries the state shared by all three variants.
type baseElement struct {
	entry     ResolvedEntry
	variant   Variant
	scanFiles bool
	spec      Spec
	logger    *slog.Logger

	state     elementState
	skip      bool
	skipCause error

	// nestedRootPrefixes are relative prefixes (with trailing slash) of
	// classpath roots physically nested inside this element; traversal must
	// not descend into them.
	nestedRootPrefixes []string

	childEntries     []ResolvedEntry
	fileMatches      []Resource
	classfileMatches []Resource

	// modTimes records per-match modification times for directory-backed
	// elements, feeding the classpath fingerprint.
	modTimes map[string]time.Time

	closeOnce sync.Once
	closeErr  error
}

func newBase(entry ResolvedEntry, v Variant, cfg *config) baseElement {
	return baseElement{
		entry:     entry,
		variant:   v,
		scanFiles: cfg.scanFiles,
		spec:      cfg.spec,
		logger:    cfg.logger,
	}
}

func (e *baseElement) Entry() ResolvedEntry { return e.entry }
func (e *baseElement) Variant() Variant     { return e.variant }
func (e *baseElement) Skipped() bool        { return e.skip }
func (e *baseElement) SkipCause() error     { return e.skipCause }

func (e *baseElement) FileMatches() []Resource {
	if e.state != stateDiscovered {
		return nil
	}
	return e.fileMatches
}

func (e *baseElement) ClassfileMatches() []Resource {
	if e.state != stateDiscovered {
		return nil
	}
	return e.classfileMatches
}

func (e *baseElement) NumClassfileMatches() int { return len(e.classfileMatches) }

func (e *baseElement) ChildEntries() []ResolvedEntry { return e.childEntries }

func (e *baseElement) base() *baseElement { return e }

// log returns the logger, falling back to a discard logger if nil.
func (e *baseElement) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// markSkipped records an unrecoverable discovery failure. Match lists are
// left empty; sibling elements are unaffected.
func (e *baseElement) markSkipped(cause error) {
	e.skip = true
	e.skipCause = cause
	e.fileMatches = nil
	e.classfileMatches = nil
	e.state = stateSkipped
	e.log().Warn("skipping classpath element",
		"element", e.entry.ResolvedPath,
		"variant", e.variant.String(),
		"error", cause)
}

func (e *baseElement) finishScan() {
	if e.state == stateDiscovering {
		e.state = stateDiscovered
	}
}

// addMatch appends a resource discovered during traversal.
func (e *baseElement) addMatch(res Resource) {
	e.fileMatches = append(e.fileMatches, res)
	if pathutil.IsClassfile(res.Path()) {
		e.classfileMatches = append(e.classfileMatches, res)
	}
}

// underNestedRoot reports whether rel falls inside a nested classpath root.
func (e *baseElement) underNestedRoot(rel string) bool {
	for _, prefix := range e.nestedRootPrefixes {
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	return false
}

// accept applies the nested-root exclusion and the external filter spec.
func (e *baseElement) accept(rel string) bool {
	if e.underNestedRoot(rel) {
		return false
	}
	return e.spec == nil || e.spec.AcceptPath(rel)
}

// closeWith runs the variant's release function exactly once.
func (e *baseElement) closeWith(release func() error) error {
	e.closeOnce.Do(func() {
		if release != nil {
			e.closeErr = release()
		}
	})
	return e.closeErr
}

// maskFiles removes relative paths already recorded in seen by an earlier
// classpath element (or an earlier occurrence within this one), mutating
// both match lists in place. Module descriptors are never masked: every
// module-like unit must retain its own descriptor.
//
// Paths are compared case-sensitively on every backing store; archives are
// always case-sensitive and a single policy keeps masking deterministic
// across filesystems.
func (e *baseElement) maskFiles(classpathIdx int, seen map[string]struct{}) {
	if !e.scanFiles {
		panic("classscan: maskFiles called on element without file scanning")
	}
	// Masked occurrences are tracked by resource identity, not path: when an
	// archive declares the same entry twice, the first occurrence already
	// claimed the path and must survive the drop.
	var masked map[Resource]struct{}
	for _, res := range e.fileMatches {
		rel := res.Path()
		if pathutil.IsModuleDescriptor(rel) {
			continue
		}
		if _, dup := seen[rel]; dup {
			if masked == nil {
				masked = make(map[Resource]struct{})
			}
			masked[res] = struct{}{}
			e.log().Debug("ignoring duplicate (masked) path",
				"path", rel,
				"class", pathutil.ClassName(rel),
				"element", e.entry.ResolvedPath,
				"classpath_index", classpathIdx)
		} else {
			seen[rel] = struct{}{}
		}
	}
	if len(masked) == 0 {
		return
	}
	e.fileMatches = dropMasked(e.fileMatches, masked)
	e.classfileMatches = dropMasked(e.classfileMatches, masked)
}

func dropMasked(matches []Resource, masked map[Resource]struct{}) []Resource {
	kept := matches[:0]
	for _, res := range matches {
		if _, ok := masked[res]; !ok {
			kept = append(kept, res)
		}
	}
	return kept
}

// newElement classifies a resolved entry and constructs the matching
// variant: module if the entry carries a module descriptor, directory if
// the canonical path resolves to a directory, archive otherwise.
//
// Classification requires a fallible canonicalization step; on failure the
// entry is dropped from the classpath entirely (logged, no element), which
// is distinct from an element that is constructed but later marked skipped.
func newElement(entry ResolvedEntry, cfg *config, pool *jarpool.Pool) Element {
	if entry.Module != nil {
		if entry.CanonicalPath == "" {
			entry.CanonicalPath = entry.Module.Location
		}
		return &moduleElement{baseElement: newBase(entry, VariantModule, cfg)}
	}

	canonical := entry.CanonicalPath
	if canonical == "" {
		var err error
		canonical, err = canonicalize(entry.ResolvedPath)
		if err != nil {
			cfg.log().Warn("dropping classpath entry",
				"path", entry.ResolvedPath, "error", err)
			return nil
		}
		entry.CanonicalPath = canonical
	}
	info, err := os.Stat(canonical)
	if err != nil {
		cfg.log().Warn("dropping classpath entry",
			"path", entry.ResolvedPath, "error", err)
		return nil
	}
	if info.IsDir() {
		return &dirElement{baseElement: newBase(entry, VariantDirectory, cfg)}
	}
	return &zipElement{baseElement: newBase(entry, VariantArchive, cfg), pool: pool}
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
