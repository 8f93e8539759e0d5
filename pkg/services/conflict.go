package services

// VersionOutcome is the decision of the optimistic-concurrency check.
type VersionOutcome struct {
	Applied bool
	// ServerVersion is the stored version, reported back to the client on a
	// mismatch so it can re-pull and retry with fresh data.
	ServerVersion int64
}

// ResolveVersion is the conflict resolver for update operations. Equality of
// stored and expected version is the sole criterion: there is no field-level
// diffing and no automatic merge. Whole-record documents do not merge
// meaningfully without a CRDT or operational-transform layer, so the policy
// is detect-and-let-the-client-retry.
func ResolveVersion(stored, expected int64) VersionOutcome {
	if stored == expected {
		return VersionOutcome{Applied: true, ServerVersion: stored}
	}
	return VersionOutcome{Applied: false, ServerVersion: stored}
}
