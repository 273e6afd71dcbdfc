package detector

import "sort"

// Match is one accepted PII/secret span found in a text, after overlap
// resolution.
type Match struct {
	Kind       Kind
	Value      string
	Start      int
	End        int
	Confidence float64
}

// Detector finds PII/secret spans in text using the fixed catalog.
// The zero value is ready to use; all state is in the pre-compiled catalog,
// so a Detector is safe for concurrent use across goroutines.
type Detector struct{}

// New returns a ready-to-use Detector.
func New() *Detector { return &Detector{} }

// candidate is an internal pre-resolution match, carrying the catalog index
// so ties can be broken by declaration order.
type candidate struct {
	Match
	contextAnchored bool
	catalogIndex    int
}

// Detect returns all non-overlapping PII/secret matches in text, ordered by
// position. Overlapping candidate matches are resolved leftmost-longest:
// sort by start ascending, then end descending (longer spans win), then
// context-anchored patterns before bare structural ones, then catalog
// declaration order; the first candidate consuming a span wins and all
// candidates it overlaps are discarded.
func (d *Detector) Detect(text string) []Match {
	var candidates []candidate

	for i, p := range catalog {
		locs := p.re.FindAllStringSubmatchIndex(text, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			if len(loc) >= 4 && loc[2] >= 0 && loc[3] >= 0 {
				// Group 1 present: the value is the captured group, not the
				// full match (context-anchored patterns with a keyword prefix).
				start, end = loc[2], loc[3]
			}
			value := text[start:end]
			if p.validate != nil && !p.validate(value) {
				continue
			}
			candidates = append(candidates, candidate{
				Match: Match{
					Kind:       p.kind,
					Value:      value,
					Start:      start,
					End:        end,
					Confidence: p.confidence,
				},
				contextAnchored: p.contextAnchored,
				catalogIndex:    i,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		if a.contextAnchored != b.contextAnchored {
			return a.contextAnchored
		}
		return a.catalogIndex < b.catalogIndex
	})

	result := make([]Match, 0, len(candidates))
	lastEnd := -1
	for _, c := range candidates {
		if c.Start >= lastEnd {
			result = append(result, c.Match)
			lastEnd = c.End
		}
	}
	return result
}
