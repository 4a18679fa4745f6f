package v8

// Checked carries a value and whether it was read successfully.
// Operations on an invalid Checked yield invalid results without touching memory.
type Checked[T any] struct {
	v  T
	ok bool
}

// Valid wraps v as a successful result.
func Valid[T any](v T) Checked[T] { return Checked[T]{v: v, ok: true} }

// Invalid returns a failed result.
func Invalid[T any]() Checked[T] { return Checked[T]{} }

// Get returns the value and whether it is valid.
func (c Checked[T]) Get() (T, bool) { return c.v, c.ok }

// Ok reports validity.
func (c Checked[T]) Ok() bool { return c.ok }

// Or returns the value, or def when invalid.
func (c Checked[T]) Or(def T) T {
	if !c.ok {
		return def
	}
	return c.v
}

// Then chains a fallible step.
func Then[T, U any](c Checked[T], f func(T) Checked[U]) Checked[U] {
	if !c.ok {
		return Invalid[U]()
	}
	return f(c.v)
}

// Apply transforms a valid value.
func Apply[T, U any](c Checked[T], f func(T) U) Checked[U] {
	if !c.ok {
		return Invalid[U]()
	}
	return Valid(f(c.v))
}
