// Package pvector implements a persistent, immutable, indexed
// sequence as a bit-partitioned trie with a tail buffer — the
// structure popularized by Clojure's vector. Every mutation returns a
// new *Vector sharing all unaffected structure with its predecessor;
// an operation never modifies the receiver it was called on.
//
// The package is single-threaded by design: node reference counts are
// plain ints, not atomics. A *Vector (and any node reachable from it)
// must not be mutated-via-Push/Update/Pop/Insert concurrently from
// more than one goroutine; reading a vector from multiple goroutines
// concurrently with another goroutine deriving a new version from it
// races on those counts. Confine a vector lineage to one goroutine, or
// guard it with an external mutex, for concurrent use.
package pvector

import "fmt"

// Vector is a persistent, indexed sequence of elements of type T.
// The zero value is not a valid Vector; use New or FromSlice.
type Vector[T any] struct {
	count     int
	tailCount int
	shift     int
	root      *node[T] // nil when every item lives in tail
	tail      *node[T] // never nil for a live vector
	alloc     Allocator[T]
}

// New returns an empty Vector using the default allocator.
func New[T any]() (*Vector[T], error) {
	return NewWithAllocator[T](directAllocator[T]{})
}

// NewWithAllocator returns an empty Vector that routes every node
// allocation through alloc. This is primarily useful in tests that
// need to trace outstanding allocations or inject allocation failure.
func NewWithAllocator[T any](alloc Allocator[T]) (*Vector[T], error) {
	tail := alloc.alloc(leafNode)
	if tail == nil {
		return nil, errOutOfMemory("new")
	}
	return &Vector[T]{tail: tail, alloc: alloc}, nil
}

// FromSlice builds a Vector containing items in order, using the
// default allocator. It is the `from_iter` operation of the external
// interface, realized over a Go slice as the ordered input type.
func FromSlice[T any](items []T) (*Vector[T], error) {
	return FromSliceWithAllocator[T](directAllocator[T]{}, items)
}

// FromSliceWithAllocator is FromSlice with an explicit Allocator.
func FromSliceWithAllocator[T any](alloc Allocator[T], items []T) (*Vector[T], error) {
	v, err := NewWithAllocator[T](alloc)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		next, err := v.Push(item)
		v.Release()
		if err != nil {
			return nil, err
		}
		v = next
	}
	return v, nil
}

// Len returns the number of elements in v.
func (v *Vector[T]) Len() int {
	return v.count
}

// tailOffset is the number of items held by the rooted trie — the
// first logical index stored in the tail.
func (v *Vector[T]) tailOffset() int {
	return v.count - v.tailCount
}

// locate is the indexing kernel of §4.1: it maps a logical index to
// the leaf node holding it and the slot within that leaf, without
// allocating or mutating anything.
func (v *Vector[T]) locate(op string, i int) (*node[T], int, error) {
	if i < 0 || i >= v.count {
		return nil, 0, errOutOfBounds(op, i, v.count)
	}

	off := v.tailOffset()
	if i >= off {
		return v.tail, i - off, nil
	}

	n := v.root
	for level := v.shift; level > 0; level -= bits {
		if n == nil {
			return nil, 0, errMissing(op, level)
		}
		idx := (i >> level) & mask
		n = n.children[idx]
	}
	if n == nil {
		return nil, 0, errMissing(op, 0)
	}
	return n, i & mask, nil
}

// Get returns the element at index i.
func (v *Vector[T]) Get(i int) (T, error) {
	var zero T
	n, slot, err := v.locate("get", i)
	if err != nil {
		return zero, err
	}
	return n.values[slot], nil
}

// Push returns a new Vector with x appended after the last element of
// v. v is left unmodified. See §4.3.
func (v *Vector[T]) Push(x T) (*Vector[T], error) {
	alloc := v.alloc

	if v.tailCount < Width {
		newTail := shallowCopy(alloc, v.tail)
		if newTail == nil {
			return nil, errOutOfMemory("push")
		}
		newTail.values[v.tailCount] = x
		newTail.count = v.tailCount + 1
		v.root.retain()
		return &Vector[T]{
			count:     v.count + 1,
			tailCount: v.tailCount + 1,
			shift:     v.shift,
			root:      v.root,
			tail:      newTail,
			alloc:     alloc,
		}, nil
	}

	// Tail is full: promote it into the trie (or straight into root)
	// and start a fresh tail.
	oldTail := v.tail
	newShift := v.shift
	var newRoot *node[T]

	switch {
	case v.count == Width:
		// The trie was empty; the full tail becomes the root as-is.
		oldTail.retain()
		newRoot = oldTail
		newShift = 0

	default:
		off := v.tailOffset()
		if off < trieCapacity(v.shift) {
			grown, err := pushLeaf(alloc, v.shift, v.root, off, oldTail)
			if err != nil {
				return nil, err
			}
			newRoot = grown
		} else {
			grownRoot := alloc.alloc(innerNode)
			if grownRoot == nil {
				return nil, errOutOfMemory("push")
			}
			path, err := newPath(alloc, v.shift, oldTail)
			if err != nil {
				releaseNode(alloc, grownRoot)
				return nil, err
			}
			v.root.retain()
			grownRoot.children[0] = v.root
			grownRoot.children[1] = path
			grownRoot.count = 2
			newShift = v.shift + bits
			newRoot = grownRoot
		}
	}

	newTail, err := newLeafWith(alloc, x)
	if err != nil {
		releaseNode(alloc, newRoot)
		return nil, err
	}

	return &Vector[T]{
		count:     v.count + 1,
		tailCount: 1,
		shift:     newShift,
		root:      newRoot,
		tail:      newTail,
		alloc:     alloc,
	}, nil
}

// pushLeaf path-copies the descent from parent (at the given level) to
// the slot that should hold leaf, allocating fresh inner nodes for any
// slot that does not yet exist along the way. parent is read-only;
// the returned node is a fresh tree sharing everything off the path.
func pushLeaf[T any](alloc Allocator[T], level int, parent *node[T], index int, leaf *node[T]) (*node[T], error) {
	cp := shallowCopy(alloc, parent)
	if cp == nil {
		return nil, errOutOfMemory("push")
	}

	idx := (index >> level) & mask

	if level == bits {
		leaf.retain()
		cp.children[idx] = leaf
		if idx == cp.count {
			cp.count++
		}
		return cp, nil
	}

	var child *node[T]
	var err error
	if existing := parent.children[idx]; existing != nil {
		child, err = pushLeaf(alloc, level-bits, existing, index, leaf)
	} else {
		child, err = newPath(alloc, level-bits, leaf)
	}
	if err != nil {
		releaseNode(alloc, cp)
		return nil, err
	}

	if idx < cp.count {
		releaseNode(alloc, cp.children[idx])
	} else {
		cp.count++
	}
	cp.children[idx] = child
	return cp, nil
}

// Update returns a new Vector with the element at index i replaced by
// x. v is left unmodified. See §4.4.
func (v *Vector[T]) Update(i int, x T) (*Vector[T], error) {
	if i < 0 || i >= v.count {
		return nil, errOutOfBounds("update", i, v.count)
	}

	alloc := v.alloc
	off := v.tailOffset()

	if i >= off {
		newTail := shallowCopy(alloc, v.tail)
		if newTail == nil {
			return nil, errOutOfMemory("update")
		}
		newTail.values[i-off] = x
		v.root.retain()
		return &Vector[T]{
			count: v.count, tailCount: v.tailCount, shift: v.shift,
			root: v.root, tail: newTail, alloc: alloc,
		}, nil
	}

	newRoot, err := updatePath(alloc, v.shift, v.root, i, x)
	if err != nil {
		return nil, err
	}
	v.tail.retain()
	return &Vector[T]{
		count: v.count, tailCount: v.tailCount, shift: v.shift,
		root: newRoot, tail: v.tail, alloc: alloc,
	}, nil
}

// updatePath path-copies the descent from n (at the given level) for
// logical index i, writing x into the leaf slot at level 0. n is
// read-only; the returned node is a fresh tree sharing everything off
// the path.
func updatePath[T any](alloc Allocator[T], level int, n *node[T], i int, x T) (*node[T], error) {
	if n == nil {
		return nil, errMissing("update", level)
	}
	cp := shallowCopy(alloc, n)
	if cp == nil {
		return nil, errOutOfMemory("update")
	}

	if level == 0 {
		cp.values[i&mask] = x
		return cp, nil
	}

	idx := (i >> level) & mask
	newChild, err := updatePath(alloc, level-bits, n.children[idx], i, x)
	if err != nil {
		releaseNode(alloc, cp)
		return nil, err
	}
	releaseNode(alloc, cp.children[idx])
	cp.children[idx] = newChild
	return cp, nil
}

// Pop returns a new Vector without its last element, and the removed
// value. v is left unmodified. See §4.5.
func (v *Vector[T]) Pop() (*Vector[T], T, error) {
	var zero T
	if v.count == 0 {
		return nil, zero, fmt.Errorf("pvector: pop: %w", ErrEmpty)
	}

	alloc := v.alloc
	newCount := v.count - 1
	newTailCount := v.tailCount - 1
	x := v.tail.values[newTailCount]

	if newTailCount > 0 {
		newTail := shallowCopy(alloc, v.tail)
		if newTail == nil {
			return nil, zero, errOutOfMemory("pop")
		}
		var blank T
		newTail.values[newTailCount] = blank
		newTail.count = newTailCount
		v.root.retain()
		return &Vector[T]{
			count: newCount, tailCount: newTailCount, shift: v.shift,
			root: v.root, tail: newTail, alloc: alloc,
		}, x, nil
	}

	// Tail becomes empty. v keeps its own reference to its old tail
	// untouched (v is never mutated); the new vector simply does not
	// reference it, so no release against v's own fields is needed
	// here — only newly-created structure's bookkeeping matters.
	if v.root == nil {
		empty := alloc.alloc(leafNode)
		if empty == nil {
			return nil, zero, errOutOfMemory("pop")
		}
		return &Vector[T]{count: newCount, alloc: alloc, tail: empty}, x, nil
	}

	if newCount == Width {
		v.root.retain()
		return &Vector[T]{
			count: newCount, tailCount: Width, shift: 0,
			root: nil, tail: v.root, alloc: alloc,
		}, x, nil
	}

	newRoot, newTailLeaf, err := popPath(alloc, v.shift, v.root, newCount-1)
	if err != nil {
		return nil, zero, err
	}
	if newRoot == nil {
		return nil, zero, errMalformed("pop", "root collapsed unexpectedly")
	}
	newTailLeaf.retain()

	newShift := v.shift
	for newShift > 0 && newRoot.count == 1 {
		child := newRoot.children[0]
		child.retain()
		releaseNode(alloc, newRoot)
		newRoot = child
		newShift -= bits
	}

	return &Vector[T]{
		count: newCount, tailCount: Width, shift: newShift,
		root: newRoot, tail: newTailLeaf, alloc: alloc,
	}, x, nil
}

// popPath path-copies the descent from parent (at the given level) for
// logical index, detaching the right-most leaf along that path to be
// promoted as the new tail. It returns the path-copied parent (nil if
// this entire subtree collapsed because its only child was the leaf
// being detached) and the detached leaf. parent is read-only.
func popPath[T any](alloc Allocator[T], level int, parent *node[T], index int) (*node[T], *node[T], error) {
	if parent == nil {
		return nil, nil, errMalformed("pop", "nil node on descent path")
	}
	idx := (index >> level) & mask

	if level == bits {
		promoted := parent.children[idx]
		if promoted == nil {
			return nil, nil, errMalformed("pop", "missing leaf to promote")
		}
		if idx == 0 {
			return nil, promoted, nil
		}
		cp := shallowCopy(alloc, parent)
		if cp == nil {
			return nil, nil, errOutOfMemory("pop")
		}
		releaseNode(alloc, cp.children[idx])
		cp.children[idx] = nil
		cp.count = idx
		return cp, promoted, nil
	}

	newChild, promoted, err := popPath(alloc, level-bits, parent.children[idx], index)
	if err != nil {
		return nil, nil, err
	}
	if newChild == nil && idx == 0 {
		return nil, promoted, nil
	}

	cp := shallowCopy(alloc, parent)
	if cp == nil {
		releaseNode(alloc, newChild)
		return nil, nil, errOutOfMemory("pop")
	}
	releaseNode(alloc, cp.children[idx])
	cp.children[idx] = newChild
	if newChild == nil {
		cp.count = idx
	}
	return cp, promoted, nil
}

// Release drops v's claim on its root and tail structure, reclaiming
// any node that becomes unreachable as a result. Call Release exactly
// once per Vector value a caller holds, after it is done with it.
// Vectors derived from v hold their own references to shared nodes, so
// v and its derived vectors may be released in any order. See §4.6.
func (v *Vector[T]) Release() {
	if v == nil {
		return
	}
	releaseNode(v.alloc, v.root)
	releaseNode(v.alloc, v.tail)
}
