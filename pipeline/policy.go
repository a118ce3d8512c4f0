package pipeline

import (
	"strings"

	"github.com/pkg/errors"
)

// Policy decides what happens to frames that arrive while a detection is still running.
type Policy string

const (
	// PolicyOverlap submits every frame; any number of detections may run at once.
	PolicyOverlap = Policy("overlap")
	// PolicyDrop runs at most one detection and skips frames arriving meanwhile.
	PolicyDrop = Policy("drop")
	// PolicyCoalesce runs at most one detection and keeps only the newest frame arriving
	// meanwhile, which runs as soon as the current detection completes.
	PolicyCoalesce = Policy("coalesce")
)

// ParsePolicy returns the policy named by s. The empty string is PolicyOverlap.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(s)); p {
	case "":
		return PolicyOverlap, nil
	case PolicyOverlap, PolicyDrop, PolicyCoalesce:
		return p, nil
	default:
		return "", errors.Errorf("unknown detection policy %q (expected overlap, drop or coalesce)", s)
	}
}
