package classscan

import "io"

// ResolvedEntry is a canonicalized classpath entry descriptor produced by
// the external path-resolution stage.
type ResolvedEntry struct {
	// ResolvedPath is the entry path as declared on the classpath, after
	// variable expansion.
	ResolvedPath string

	// CanonicalPath is the symlink-resolved absolute path. If empty, the
	// element factory canonicalizes ResolvedPath itself; entries that fail
	// canonicalization are dropped from the classpath.
	CanonicalPath string

	// Module is non-nil when the entry is backed by a module descriptor
	// rather than a file or directory.
	Module *ModuleRef

	// Loaders identifies the loader(s) that contributed this entry.
	Loaders []string

	// PackageRoot is an optional in-archive sub-path from which relative
	// paths are measured (e.g. "BOOT-INF/classes"). Empty for the archive root.
	PackageRoot string
}

// ModuleRef describes a module-backed classpath entry.
type ModuleRef struct {
	// Name is the module's declared name.
	Name string

	// Location identifies where the module was resolved from.
	Location string

	// Reader opens the module's resource reader. Called once per scan; the
	// reader stays open for the element's lifetime and is closed by Close.
	Reader func() (ModuleReader, error)
}

// ModuleReader enumerates and opens a module's resources.
// List returns relative resource names in module-declared order.
type ModuleReader interface {
	List() ([]string, error)
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// Spec decides which classpath-relative paths qualify for a scan. It is an
// opaque predicate supplied by the external filter engine and passed through
// to traversal and parsing unchanged.
type Spec interface {
	AcceptPath(relPath string) bool
}

// Parser decodes one binary class definition from a byte stream into a
// parsed-but-unlinked record.
//
// Returning (nil, nil) excludes the class post-inspection. Errors wrapping
// ErrResourceRead are recoverable (the resource is skipped); any other error
// aborts the scan.
type Parser interface {
	Parse(elt Element, relPath string, r io.Reader, spec Spec) (*ClassRecord, error)
}

// ClassRecord is a class definition decoded from bytes but not yet
// cross-referenced against other classes. Fields beyond Path and Element
// are filled by the external parser.
type ClassRecord struct {
	Name         string
	SuperName    string
	Interfaces   []string
	IsInterface  bool
	IsAnnotation bool

	// Path is the classpath-relative path the record was parsed from.
	Path string

	// Element is the classpath element that owned the classfile.
	Element Element
}

// RecordSink collects parsed records from concurrent parse workers.
// Push must be safe under concurrent writers. Consumers must not assume
// any global ordering of pushed records.
type RecordSink interface {
	Push(*ClassRecord)
}
