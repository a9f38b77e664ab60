// Package classscan indexes a runtime loader's ordered search path —
// directories, archives, and module descriptors — to locate resources and
// binary class definitions matching caller-supplied filters, without
// invoking the host runtime's own loading machinery.
//
// A scan proceeds in three phases over a bounded worker pool: per-element
// discovery (parallel, one element per unit of work), a single-threaded
// masking pass that removes relative paths shadowed by earlier classpath
// entries, and a parallel parse phase that feeds surviving classfiles to an
// external binary parser and collects results in a concurrent sink.
//
// Filter semantics, the byte-level classfile grammar, and class-hierarchy
// linking are external collaborators; this package only discovers, dedups,
// dispatches, and manages resource lifetime.
package classscan
