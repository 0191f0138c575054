package variable

// Tags understood by a Scope. Any other tag is carried through unchanged and
// reported in change notifications.
const (
	// TagReadOnly marks a variable that may be assigned once only.
	TagReadOnly = "readonly"

	// TagRequired marks a variable that must be assigned before the scope is
	// finalized.
	TagRequired = "required"

	TagInternal         = "internal"
	TagInput            = "input"
	TagOutput           = "output"
	TagBusinessRelevant = "business-relevant"
	TagTracked          = "tracked"
)

// hasTag returns true if tags contains t.
func hasTag(tags []string, t string) bool {
	for _, x := range tags {
		if x == t {
			return true
		}
	}

	return false
}
