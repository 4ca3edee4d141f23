package core

import "fmt"

// Invariant reports a broken internal bookkeeping rule. Debug builds abort,
// release builds log it and hand back an error so the caller can skip the item.
func Invariant(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
	if debugBuild {
		LogFatal(err.Error())
	}
	LogError(err.Error())
	return err
}
