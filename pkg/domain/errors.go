package domain

import "errors"

// ErrUnknownResponseKind is returned when a response carries a tag other than Callback or Error.
var ErrUnknownResponseKind = errors.New("unknown response kind")

// ErrDriverClosed is returned when an operation is attempted on a closed driver.
var ErrDriverClosed = errors.New("driver is closed")

// ErrUnknownComponent is returned when no entry point is registered under a name.
var ErrUnknownComponent = errors.New("unknown component")

// ErrDuplicateDriver is returned when two drivers claim the same name.
var ErrDuplicateDriver = errors.New("duplicate driver name")
