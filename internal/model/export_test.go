package model

// SetReferenceGenerator replaces the short reference generator until the
// returned restore func is called.
func SetReferenceGenerator(f func() string) (restore func()) {
	prev := newReference
	newReference = f
	return func() { newReference = prev }
}
