package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocol marks an agent protocol violation. It is fatal for the match.
var ErrProtocol = errors.New("protocol violation")

func violation(line, format string, args ...any) error {
	return fmt.Errorf("%w: %s (line %q)", ErrProtocol, fmt.Sprintf(format, args...), line)
}

// IsKnownTag reports whether tag may start an observation line.
func IsKnownTag(tag string) bool {
	_, ok := tagArity[tag]
	return ok
}
