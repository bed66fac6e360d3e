package types

// Structs

// Index specifies a position in the history of some replicated
// structure in one of two variants: absolute counting from the
// start, or relative counting back from the end where FromEnd(0)
// denotes the position just past the most recent element and
// FromEnd(1) the most recent element itself.
type Index struct {
	fromEnd bool
	value   uint64
}

// Functions

// FromStart returns an absolute Index.
func FromStart(index uint64) Index {

	return Index{
		fromEnd: false,
		value:   index,
	}
}

// FromEnd returns an Index counting backwards
// from the end of the data.
func FromEnd(index uint64) Index {

	return Index{
		fromEnd: true,
		value:   index,
	}
}

// Absolute resolves an Index against a structure holding count
// elements. The boolean result is false if the Index does not
// denote a position inside [0, count], which callers report as
// a "no data" outcome rather than an error.
func (i Index) Absolute(count uint64) (uint64, bool) {

	if i.fromEnd {

		if i.value > count {
			return 0, false
		}

		return count - i.value, true
	}

	if i.value > count {
		return 0, false
	}

	return i.value, true
}

// AbsoluteElement resolves an Index to the position of one
// element among count existing ones. Unlike Absolute, which
// resolves range boundaries, the relative variant is 0-based
// on elements here: FromEnd(0) denotes the most recent element.
// The boolean result is false if no element lies at the Index.
func (i Index) AbsoluteElement(count uint64) (uint64, bool) {

	if i.value >= count {
		return 0, false
	}

	if i.fromEnd {
		return count - 1 - i.value, true
	}

	return i.value, true
}

// AbsoluteRange resolves a start and end Index pair against a
// structure holding count elements. It returns false if either
// bound is invalid or the start lies past the end, so callers
// can distinguish an invalid range from an empty one.
func AbsoluteRange(start Index, end Index, count uint64) (uint64, uint64, bool) {

	first, ok := start.Absolute(count)
	if !ok {
		return 0, 0, false
	}

	last, ok := end.Absolute(count)
	if !ok {
		return 0, 0, false
	}

	if first > last {
		return 0, 0, false
	}

	return first, last, true
}
