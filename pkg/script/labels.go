package script

// labelEntry is one open labeled construct.
type labelEntry struct {
	name string
	node NodeID
	loop bool
}

// LabelRegistry tracks the labeled constructs enclosing the node being
// visited. Inner entries shadow outer ones with the same name.
type LabelRegistry struct {
	open []labelEntry
}

// Open registers a labeled construct as an open ancestor.
func (r *LabelRegistry) Open(name string, node NodeID, loop bool) {
	r.open = append(r.open, labelEntry{name: NormalizeIdent(name), node: node, loop: loop})
}

// Close removes the innermost open construct.
func (r *LabelRegistry) Close() {
	if len(r.open) > 0 {
		r.open = r.open[:len(r.open)-1]
	}
}

// Resolve finds the innermost open construct carrying name.
func (r *LabelRegistry) Resolve(name string) (node NodeID, loop bool, ok bool) {
	key := NormalizeIdent(name)
	for i := len(r.open) - 1; i >= 0; i-- {
		if r.open[i].name == key {
			return r.open[i].node, r.open[i].loop, true
		}
	}
	return NoNode, false, false
}

// Depth returns the number of open labeled constructs.
func (r *LabelRegistry) Depth() int {
	return len(r.open)
}
