// Package pathutil provides path manipulation for slash-separated
// classpath-relative paths.
package pathutil

import "strings"

const (
	classfileSuffix = ".class"

	// moduleDescriptorName is the distinguished classfile every module-like
	// unit carries; it is exempt from duplicate masking.
	moduleDescriptorName = "module-info.class"
)

// IsClassfile reports whether the final segment of a relative path denotes
// a binary class definition.
func IsClassfile(relPath string) bool {
	return strings.HasSuffix(relPath, classfileSuffix)
}

// IsModuleDescriptor reports whether a relative path names a module
// descriptor, at any directory depth.
func IsModuleDescriptor(relPath string) bool {
	return relPath == moduleDescriptorName || strings.HasSuffix(relPath, "/"+moduleDescriptorName)
}

// ClassName converts a classfile-relative path to a dotted class name.
// Returns the path unchanged if it does not denote a classfile.
func ClassName(relPath string) string {
	if !IsClassfile(relPath) {
		return relPath
	}
	name := strings.TrimSuffix(relPath, classfileSuffix)
	return strings.ReplaceAll(name, "/", ".")
}

// Normalize converts an archive or module entry name to canonical
// classpath-relative form: leading "/" and "./" are stripped and
// consecutive slashes collapsed. Directory entries keep no trailing slash.
func Normalize(p string) string {
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	if !strings.Contains(p, "//") {
		return p
	}
	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	return strings.Join(result, "/")
}

// DirPrefix converts a relative directory path to its prefix form with a
// trailing slash, so it can be matched against descendant paths.
func DirPrefix(rel string) string {
	if rel == "" || rel == "." {
		return ""
	}
	return strings.TrimSuffix(rel, "/") + "/"
}
