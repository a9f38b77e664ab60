package classscan

import (
	"encoding/binary"
	"io"

	"github.com/opencontainers/go-digest"
)

// fingerprintElements computes a digest over the discovered classpath:
// element canonical paths, post-mask relative paths, and captured
// modification times for directory-backed matches. Two scans over an
// unchanged backing store produce the same digest, so callers can use it
// for external change detection without re-parsing.
func fingerprintElements(elements []Element) digest.Digest {
	digester := digest.SHA256.Digester()
	h := digester.Hash()
	for _, elt := range elements {
		b := elt.base()
		writeField(h, b.entry.CanonicalPath)
		if b.skip {
			writeField(h, "skipped")
			continue
		}
		for _, res := range b.fileMatches {
			rel := res.Path()
			writeField(h, rel)
			if t, ok := b.modTimes[rel]; ok {
				var buf [8]byte
				binary.LittleEndian.PutUint64(buf[:], uint64(t.UnixNano()))
				h.Write(buf[:]) //nolint:errcheck // hash writes never fail
			}
		}
	}
	return digester.Digest()
}

func writeField(w io.Writer, s string) {
	io.WriteString(w, s) //nolint:errcheck // hash writes never fail
	w.Write([]byte{0})   //nolint:errcheck // hash writes never fail
}
