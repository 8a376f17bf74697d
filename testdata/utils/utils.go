package utils

// Ptr returns a pointer to v; shorthand for literals in tests.
func Ptr[T any](v T) *T {
	return &v
}
