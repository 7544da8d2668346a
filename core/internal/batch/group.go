package batch

// rangeGroup represents a contiguous run of entries in the archive.
// All entries in a group are read through a single stream.
type rangeGroup struct {
	start   int64    // Start byte offset in the archive
	end     int64    // End byte offset (exclusive)
	entries []*Entry // Entries within this range, in offset order
}

// groupAdjacentEntries groups entries that are adjacent in the archive.
//
// Entries must be sorted by Offset before calling this function.
// Adjacent entries (where one ends exactly where the next begins) are
// combined into a single group so they share one stream.
//
// The entries slice must be non-empty.
func groupAdjacentEntries(entries []*Entry) []rangeGroup {
	groups := make([]rangeGroup, 0, len(entries))
	current := rangeGroup{
		start:   entries[0].Offset,
		end:     entries[0].Offset + entries[0].Size,
		entries: []*Entry{entries[0]},
	}

	for i := 1; i < len(entries); i++ {
		entry := entries[i]
		entryEnd := entry.Offset + entry.Size

		if entry.Offset == current.end {
			current.end = entryEnd
			current.entries = append(current.entries, entry)
		} else {
			groups = append(groups, current)
			current = rangeGroup{
				start:   entry.Offset,
				end:     entryEnd,
				entries: []*Entry{entry},
			}
		}
	}
	return append(groups, current)
}
