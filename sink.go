package classscan

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// MapSink is the default RecordSink: a lock-free concurrent map keyed by
// element canonical path plus relative path, so per-module descriptors
// (which masking never removes) do not collide across elements.
//
// Push is safe under concurrent writers without a global lock; record
// ordering is unspecified.
type MapSink struct {
	m *xsync.MapOf[string, *ClassRecord]
}

// NewMapSink creates an empty MapSink.
func NewMapSink() *MapSink {
	return &MapSink{m: xsync.NewMapOf[string, *ClassRecord]()}
}

// Push implements RecordSink.
func (s *MapSink) Push(rec *ClassRecord) {
	key := rec.Path
	if rec.Element != nil {
		key = rec.Element.Entry().CanonicalPath + "!/" + rec.Path
	}
	s.m.Store(key, rec)
}

// Len returns the number of collected records.
func (s *MapSink) Len() int {
	return s.m.Size()
}

// Records returns the collected records in unspecified order.
func (s *MapSink) Records() []*ClassRecord {
	records := make([]*ClassRecord, 0, s.m.Size())
	s.m.Range(func(_ string, rec *ClassRecord) bool {
		records = append(records, rec)
		return true
	})
	return records
}
