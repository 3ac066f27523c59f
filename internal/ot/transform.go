package ot

// TransformSingle rewrites op so it applies cleanly after other has already
// been applied. This is position adjustment only:
//
//   - an insert at or before op's position shifts op forward by the inserted
//     length;
//   - a delete that ends at or before op's position shifts op backward by the
//     deleted length;
//   - a delete whose range extends past op's position clamps op to the
//     delete's start;
//   - retains never move op.
//
// The clamp rule does not reconstruct intent for crossing delete ranges; the
// later delete may remove already-shortened text.
func TransformSingle(op, other Operation) Operation {
	switch other.Kind {
	case Insert:
		if other.Position <= op.Position {
			op.Position += other.ContentLen()
		}
	case Delete:
		end := other.Position + other.Length

		switch {
		case end <= op.Position:
			op.Position -= other.Length
		case other.Position <= op.Position:
			op.Position = other.Position
		}
	case Retain:
		// Retains never move anything.
	}

	return op
}

// TransformBatch folds every operation in ops through every operation in
// others, in order. It returns a new slice; ops is left untouched.
func TransformBatch(ops, others []Operation) []Operation {
	out := CloneOps(ops)

	for _, other := range others {
		for i := range out {
			out[i] = TransformSingle(out[i], other)
		}
	}

	return out
}
