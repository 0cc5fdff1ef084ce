package watcher

// consolidate applies spec.md §4.3's four rules to one path's ordered
// event history, returning the verdict to emit (ChangeNone means drop the
// path from the drained set entirely).
//
// 1. add then unlink: drop both.
// 2. unlink then add: emit update.
// 3. two consecutive adds with equal, non-empty fingerprint: keep one (no
//    change emitted, the file is assumed unchanged).
// 4. any other sequence ending in a second mutation: emit update.
//
// A null/empty fingerprint on either add in rule 3 (one side or both) is
// treated as equal, so the pair keeps one (resolved open question: the
// watcher can't tell them apart, and treating them as a spurious duplicate
// notification is the common case for editors that write-then-rename).
func consolidate(events []rawEvent) ChangeKind {
	if len(events) == 0 {
		return ChangeNone
	}
	if len(events) == 1 {
		if events[0].kind == EventUnlink {
			return ChangeUnlink
		}
		return ChangeAdd
	}

	if len(events) == 2 {
		first, last := events[0], events[1]
		if first.kind == EventAdd && last.kind == EventUnlink {
			return ChangeNone
		}
		if first.kind == EventUnlink && last.kind == EventAdd {
			return ChangeUpdate
		}
		if first.kind == EventAdd && last.kind == EventAdd {
			if fingerprintsEqual(first.fingerprint, last.fingerprint) {
				return ChangeAdd
			}
			return ChangeUpdate
		}
	}
	// Rule 4: any other sequence (including every length >= 3) ends in a
	// second mutation relative to the path's prior state, so it's an update.
	return ChangeUpdate
}

// fingerprintsEqual treats an empty fingerprint on either side as equal
// (see consolidate doc comment); otherwise it compares the two values.
func fingerprintsEqual(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return a == b
}
