package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
)

// MaxReadLimit caps the page size of ReadLast.
const MaxReadLimit = 500

// ReadLast returns up to n events, newest first, after skipping the newest
// offset events. more reports whether older events remain. Malformed
// lines are skipped; a missing file reads as empty.
func ReadLast(path string, n, offset int) (events []Event, more bool, err error) {
	n = min(n, MaxReadLimit)
	offset = max(offset, 0)
	if n <= 0 || offset > math.MaxInt-n {
		return []Event{}, false, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Event{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close() //nolint:errcheck // read-only

	// Keep only the newest n+offset events; event seq lives at ring[seq%window].
	window := n + offset
	var ring []Event
	total := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		if len(ring) < window {
			ring = append(ring, ev)
		} else {
			ring[total%window] = ev
		}
		total++
	}
	if err := sc.Err(); err != nil {
		return nil, false, err
	}

	events = make([]Event, 0, n)
	for seq := total - 1 - offset; seq >= 0 && len(events) < n; seq-- {
		events = append(events, ring[seq%window])
	}
	return events, total > window, nil
}
