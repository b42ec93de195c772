package secparser

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Sub-structure markers. Each marker's start offset is located in the
// body and the sub-section text is the slice up to the next marker.
var (
	numberedMarker     = regexp.MustCompile(`(?m)^\((\d+)\)`)
	letteredMarker     = regexp.MustCompile(`(?m)^\(([a-z])\)`)
	explanationMarker  = regexp.MustCompile(`(?m)^Explanation(?:\s+(\d+))?\.`)
	provisoMarker      = regexp.MustCompile(`(?m)^Provided (?:that|also|further)`)
	illustrationHeader = regexp.MustCompile(`(?m)^Illustrations?\s*$`)
)

type subMarker struct {
	offset int
	label  string
	kind   types.SubSectionKind
}

// extractSubs locates every structural marker in a section body and
// slices the body between consecutive markers. Lettered items that
// appear after an "Illustrations" header are illustrations, not
// lettered clauses.
func extractSubs(body string) []ParsedSub {
	illusOffset := -1
	if loc := illustrationHeader.FindStringIndex(body); loc != nil {
		illusOffset = loc[0]
	}

	var markers []subMarker

	for _, m := range numberedMarker.FindAllStringSubmatchIndex(body, -1) {
		markers = append(markers, subMarker{
			offset: m[0],
			label:  "(" + body[m[2]:m[3]] + ")",
			kind:   types.SubNumbered,
		})
	}
	for _, m := range letteredMarker.FindAllStringSubmatchIndex(body, -1) {
		kind := types.SubLettered
		if illusOffset >= 0 && m[0] > illusOffset {
			kind = types.SubIllustration
		}
		markers = append(markers, subMarker{
			offset: m[0],
			label:  "(" + body[m[2]:m[3]] + ")",
			kind:   kind,
		})
	}
	for _, m := range explanationMarker.FindAllStringSubmatchIndex(body, -1) {
		label := "Explanation"
		if m[2] >= 0 {
			label = "Explanation " + body[m[2]:m[3]]
		}
		markers = append(markers, subMarker{offset: m[0], label: label, kind: types.SubExplanation})
	}
	provisoCount := 0
	for _, m := range provisoMarker.FindAllStringIndex(body, -1) {
		provisoCount++
		markers = append(markers, subMarker{
			offset: m[0],
			label:  fmt.Sprintf("Proviso %d", provisoCount),
			kind:   types.SubProviso,
		})
	}

	if len(markers) == 0 {
		return nil
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].offset < markers[j].offset })

	subs := make([]ParsedSub, 0, len(markers))
	seen := make(map[string]bool, len(markers))
	for i, mk := range markers {
		end := len(body)
		if i+1 < len(markers) {
			end = markers[i+1].offset
		}
		// Labels are unique per section; an illustration "(a)" after a
		// lettered clause "(a)" keeps a kind-qualified label.
		label := mk.label
		if seen[label] {
			label = fmt.Sprintf("%s.%s", mk.kind, mk.label)
		}
		seen[label] = true
		subs = append(subs, ParsedSub{
			Label:    label,
			Kind:     mk.kind,
			Text:     trimSub(body[mk.offset:end]),
			Position: i,
		})
	}
	return subs
}

func trimSub(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
