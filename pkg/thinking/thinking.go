// Package thinking separates a model's <think>...</think> region from the
// text shown to the user. The streaming Filter follows the same rules as
// Split, so what is displayed and what is persisted always agree.
package thinking

import "strings"

const (
	Open  = "<think>"
	Close = "</think>"
)

// Parts is text divided around its first thinking region.
type Parts struct {
	Before  string
	Thought string
	After   string
	// Opened is set when an open marker was found.
	Opened bool
	// Closed is set when a close marker follows the open marker.
	Closed bool
}

// Split finds the first open marker and the first close marker after it.
// Without an open marker the whole text is Before. An unterminated region
// runs to the end of the text.
func Split(text string) Parts {
	i := strings.Index(text, Open)
	if i < 0 {
		return Parts{Before: text}
	}

	p := Parts{Before: text[:i], Opened: true}
	rest := text[i+len(Open):]
	j := strings.Index(rest, Close)
	if j < 0 {
		p.Thought = rest
		return p
	}

	p.Thought = rest[:j]
	p.After = rest[j+len(Close):]
	p.Closed = true
	return p
}

// Visible is the text outside the region.
func (p Parts) Visible() string {
	return p.Before + p.After
}

// Strip removes the first thinking region, markers included.
func Strip(text string) string {
	return Split(text).Visible()
}

// Update describes what a single fragment changed.
type Update struct {
	// Leading is newly visible text that precedes the region.
	Leading string
	// Trailing is newly visible text that follows the region.
	Trailing string
	Entered  bool
	Exited   bool
	// Inside is set while the region is open after this fragment.
	Inside bool
}

// Filter applies Split incrementally to a stream of fragments. A trailing
// partial open marker is held back until the next fragment decides it.
// Each fragment is scanned once, apart from a marker-sized overlap.
type Filter struct {
	raw strings.Builder
	// emitted is the length of the visible prefix released before the region.
	emitted int
	// scanned is the offset before which no close marker can start.
	scanned int
	opened  bool
	closed  bool
}

// Write appends fragment and reports the text that became visible.
func (f *Filter) Write(fragment string) Update {
	f.raw.WriteString(fragment)
	if f.closed {
		return Update{Trailing: fragment}
	}

	text := f.raw.String()
	var u Update
	if !f.opened {
		pending := text[f.emitted:]
		i := strings.Index(pending, Open)
		if i < 0 {
			end := len(text) - partialSuffix(pending, Open)
			u.Leading = text[f.emitted:end]
			f.emitted = end
			return u
		}
		u.Leading = pending[:i]
		u.Entered = true
		f.emitted += i
		f.scanned = f.emitted + len(Open)
		f.opened = true
	}

	j := strings.Index(text[f.scanned:], Close)
	if j < 0 {
		if next := len(text) - len(Close) + 1; next > f.scanned {
			f.scanned = next
		}
		u.Inside = true
		return u
	}
	u.Exited = true
	u.Trailing = text[f.scanned+j+len(Close):]
	f.closed = true
	return u
}

// Flush releases text held back as a possible marker prefix. Call it once the stream ends.
func (f *Filter) Flush() string {
	if f.opened {
		return ""
	}
	text := f.raw.String()
	rest := text[f.emitted:]
	f.emitted = len(text)
	return rest
}

// Inside reports whether the stream is currently within the region.
func (f *Filter) Inside() bool {
	return f.opened && !f.closed
}

// Text returns everything written so far, markers included.
func (f *Filter) Text() string {
	return f.raw.String()
}

// partialSuffix returns the length of the longest proper prefix of marker
// that text ends with.
func partialSuffix(text, marker string) int {
	n := len(marker) - 1
	if n > len(text) {
		n = len(text)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(text, marker[:n]) {
			return n
		}
	}
	return 0
}
