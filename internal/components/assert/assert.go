// Package assert panics on constructor preconditions that only a programming
// error can violate.
package assert

// NotNil panics when a required dependency was not provided.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

// NotEmptyStr panics when a required string, like a base url or a root
// folder, is empty.
func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
