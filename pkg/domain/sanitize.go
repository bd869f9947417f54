package domain

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxSignalSize is 4KB
	DefaultMaxSignalSize = 4096
	// EnvMaxSignalSize overrides DefaultMaxSignalSize.
	EnvMaxSignalSize = "WARDEN_MAX_SIGNAL_SIZE"
)

var (
	ErrSignalTooLarge = errors.New("signal data exceeds maximum allowed size")
	ErrInvalidUTF8    = errors.New("signal data contains invalid UTF-8 sequences")
)

// SanitizeData checks signal data arriving from outside the process: it
// enforces the size limit, requires valid UTF-8 and strips control
// characters other than newline, tab and carriage return.
func SanitizeData(data string) (string, error) {
	limit := maxSignalSize()
	if len(data) > limit {
		// Rejected, not truncated: a cut payload would be a different command.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrSignalTooLarge, len(data), limit)
	}
	if !utf8.ValidString(data) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range data {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return data, nil
	}

	var b strings.Builder
	b.Grow(len(data))
	for _, r := range data {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxSignalSize() int {
	if val := os.Getenv(EnvMaxSignalSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxSignalSize
}
