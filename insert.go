package pvector

// Insert returns a new Vector with x inserted at index i, shifting
// every element at or after i one position to the right. i == Len()
// behaves as Push, per §9's resolution of the source's unspecified
// append-vs-insert boundary. v is left unmodified.
//
// This is the reference algorithm of §4.7: push the last element to
// grow the vector by one, then walk the suffix down to i replacing
// each slot with its left neighbor's old value, and finally write x
// at i. Every intermediate vector is exclusively owned by this call
// and is released as soon as the next version supersedes it, so no
// structure leaks and v is never touched. The cost is O(N) Update
// calls on the changed suffix, each O(log N) — O(N log N) overall, as
// permitted (not required to be optimized to a single descent) by
// §4.7 and §9.
func (v *Vector[T]) Insert(i int, x T) (*Vector[T], error) {
	if i < 0 || i > v.count {
		return nil, errOutOfBounds("insert", i, v.count+1)
	}
	if i == v.count {
		return v.Push(x)
	}

	last, err := v.Get(v.count - 1)
	if err != nil {
		return nil, err
	}
	cur, err := v.Push(last)
	if err != nil {
		return nil, err
	}

	for j := v.count - 2; j >= i; j-- {
		val, err := v.Get(j)
		if err != nil {
			cur.Release()
			return nil, err
		}
		next, err := cur.Update(j+1, val)
		if err != nil {
			cur.Release()
			return nil, err
		}
		cur.Release()
		cur = next
	}

	final, err := cur.Update(i, x)
	if err != nil {
		cur.Release()
		return nil, err
	}
	cur.Release()
	return final, nil
}
