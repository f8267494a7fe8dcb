package errors

import (
	"fmt"
	"strings"
)

// maxListedDanglers caps the per-batch listing; the count always reflects
// every skipped entry.
const maxListedDanglers = 10

// DanglingParent records one creation entry whose stated parent is absent
// from both the payload and the registry.
type DanglingParent struct {
	ID     uint32
	Parent uint32
	Token  string
	Tags   map[string]string
}

// DanglingParentsError aggregates every unresolvable entry of one creation
// batch. The affected entries are skipped; the rest of the batch applies.
type DanglingParentsError struct {
	Entries []DanglingParent
}

// NewDanglingParentsError creates an aggregate from skipped entries.
func NewDanglingParentsError(entries []DanglingParent) *DanglingParentsError {
	return &DanglingParentsError{Entries: entries}
}

func (e *DanglingParentsError) Error() string {
	if len(e.Entries) == 0 {
		return "[create] dangling_parent: no entries specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "creation batch skipped %d entry(ies) with unresolvable parents:", len(e.Entries))

	listed := e.Entries
	if len(listed) > maxListedDanglers {
		listed = listed[:maxListedDanglers]
	}
	for _, d := range listed {
		fmt.Fprintf(&b, "\n  entity %d (token %q, parent %d", d.ID, d.Token, d.Parent)
		if len(d.Tags) > 0 {
			b.WriteString(", tags ")
			b.WriteString(formatTags(d.Tags))
		}
		b.WriteByte(')')
	}
	if len(e.Entries) > maxListedDanglers {
		fmt.Fprintf(&b, "\n  ... and %d more", len(e.Entries)-maxListedDanglers)
	}

	return b.String()
}

// Is reports whether target matches this error type
func (e *DanglingParentsError) Is(target error) bool {
	_, ok := target.(*DanglingParentsError)
	return ok
}

func formatTags(tags map[string]string) string {
	parts := make([]string, 0, len(tags))
	for k, v := range tags {
		parts = append(parts, k+"="+v)
	}
	// Stable output for logs and tests.
	for i := 1; i < len(parts); i++ {
		for j := i; j > 0 && parts[j] < parts[j-1]; j-- {
			parts[j], parts[j-1] = parts[j-1], parts[j]
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}
