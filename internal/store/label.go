// Package store provides partition label rules and on-disk locations for feedcache.
package store

import (
	"errors"
	"regexp"
)

// ErrInvalidLabel indicates the label format is invalid.
var ErrInvalidLabel = errors.New("invalid label: must be lowercase alphanumeric with hyphens or underscores, 1-4 path segments")

// DefaultLabel is used when no label is configured.
const DefaultLabel = "default"

// labelRegex validates label format.
// Format: <segment>[/<segment>]*
// - 1-4 path segments separated by /
// - Segments: lowercase alphanumeric, hyphens and underscores
// - Segment length: 1-64 characters, starting and ending alphanumeric
// - Total max length: 256 characters
var labelRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]{0,62}[a-z0-9])?(\/[a-z0-9]([a-z0-9_-]{0,62}[a-z0-9])?){0,3}$`)

// ValidateLabel validates a partition label.
func ValidateLabel(label string) error {
	if label == "" || len(label) > 256 {
		return ErrInvalidLabel
	}
	if !labelRegex.MatchString(label) {
		return ErrInvalidLabel
	}
	return nil
}
