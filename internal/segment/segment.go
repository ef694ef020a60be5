// Package segment models raw transcription fragments and derives the
// display-ready conversation view from them.
//
// A [Fragment] is one incremental update from the transcription source,
// keyed by a stream-assigned id that is stable across updates to the same
// utterance. [Merge] collapses the current fragment map into an ordered
// slice of [Display] values for rendering; it is a pure function and
// re-running it on an unchanged map yields identical output.
package segment

import (
	"sort"
	"strings"
)

// Speaker identifies which side of the conversation produced a fragment.
type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// IsValid reports whether s is a recognised speaker role.
func (s Speaker) IsValid() bool {
	return s == SpeakerAgent || s == SpeakerUser
}

// mergeGapMs is the maximum silence between two consecutive agent fragments
// for them to be rendered as one utterance.
const mergeGapMs = 1000

// statusIDPrefix marks synthetic status-only fragments that must never merge
// with real speech.
const statusIDPrefix = "status-"

// Fragment is one incremental transcription update. Text is the latest full
// text for the utterance; the source may replace it wholesale on every
// update.
type Fragment struct {
	// ID is the stream-assigned key, stable across updates to one utterance.
	ID string

	// Speaker is the side of the conversation this fragment belongs to.
	Speaker Speaker

	// Text is the latest full transcript text for the utterance.
	Text string

	// FirstObservedAt and LastObservedAt are unix-millisecond timestamps of
	// the first and most recent update for this id.
	FirstObservedAt int64
	LastObservedAt  int64

	// Final is the source's advisory completion hint. It is a fast-path
	// optimisation only; it does not fire reliably.
	Final bool
}

// IsStatusID reports whether id names a synthetic status-only fragment.
func IsStatusID(id string) bool {
	return strings.HasPrefix(id, statusIDPrefix)
}

// Display is a possibly-merged view entity derived from fragments for
// rendering. It is never persisted.
type Display struct {
	// ID is the id of the latest fragment folded into this segment.
	ID string

	Speaker Speaker
	Text    string

	FirstObservedAt int64
	LastObservedAt  int64
}

// Merge derives the ordered display view from the current fragment map.
//
// Fragments are sorted by FirstObservedAt (id as tie-break, so output is
// deterministic) and folded left: two consecutive agent fragments merge when
// the gap between the earlier one's last update and the later one's first
// update is at most one second and neither is a status fragment. User
// fragments never merge. A merged segment keeps the earliest start, the
// latest end, space-joined text and the later fragment's id.
func Merge(fragments map[string]Fragment) []Display {
	sorted := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		sorted = append(sorted, f)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FirstObservedAt != sorted[j].FirstObservedAt {
			return sorted[i].FirstObservedAt < sorted[j].FirstObservedAt
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make([]Display, 0, len(sorted))
	for _, f := range sorted {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Speaker == SpeakerAgent && f.Speaker == SpeakerAgent &&
				f.FirstObservedAt-last.LastObservedAt <= mergeGapMs &&
				!IsStatusID(last.ID) && !IsStatusID(f.ID) {
				last.ID = f.ID
				last.Text = last.Text + " " + f.Text
				last.LastObservedAt = f.LastObservedAt
				continue
			}
		}
		out = append(out, Display{
			ID:              f.ID,
			Speaker:         f.Speaker,
			Text:            f.Text,
			FirstObservedAt: f.FirstObservedAt,
			LastObservedAt:  f.LastObservedAt,
		})
	}
	return out
}

// LatestAgentFragment returns the agent fragment with the most recent
// LastObservedAt, used to mark the utterance that was cut off when the agent
// is interrupted mid-speech. Returns ok=false when no agent fragment exists.
func LatestAgentFragment(fragments map[string]Fragment) (Fragment, bool) {
	var (
		latest Fragment
		found  bool
	)
	for _, f := range fragments {
		if f.Speaker != SpeakerAgent {
			continue
		}
		if !found || f.LastObservedAt > latest.LastObservedAt ||
			(f.LastObservedAt == latest.LastObservedAt && f.ID > latest.ID) {
			latest = f
			found = true
		}
	}
	return latest, found
}
