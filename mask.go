package classscan

// maskAll runs the cross-element duplicate-masking pass in classpath
// declaration order: the first occurrence of a relative path (lowest
// classpath index, then first-in-traversal-order within that element) wins,
// and every later occurrence is removed from its element's match lists.
// This is how dependency shadowing is resolved.
//
// maskAll is a single global pass over finalized match lists; it must run
// only after every element's discovery has completed, and never
// concurrently with discovery or another masking pass.
func maskAll(elements []Element) {
	seen := make(map[string]struct{})
	for idx, elt := range elements {
		b := elt.base()
		if b.skip || !b.scanFiles {
			continue
		}
		b.maskFiles(idx, seen)
	}
}
