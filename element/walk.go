package element

// Walk visits r and its descendants depth first, parents before children.
// fn receives borrowed handles and the depth below r; returning false stops
// the walk. Walk reports whether it ran to completion.
func Walk(r Ref, fn func(e Ref, depth int) bool) bool {
	return walk(r, 0, fn)
}

func walk(r Ref, depth int, fn func(Ref, int) bool) bool {
	if !fn(r, depth) {
		return false
	}
	for _, child := range Children(r) {
		if !walk(child, depth+1, fn) {
			return false
		}
	}
	return true
}

// Count returns the number of elements in the tree rooted at r.
func Count(r Ref) int {
	n := 0
	Walk(r, func(Ref, int) bool {
		n++
		return true
	})
	return n
}
