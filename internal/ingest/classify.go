package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lawkhoj/lawkhoj/pkg/types"
)

// Offence classification is heuristic: the procedural schedule is the
// authority, but the punishment clause of the section text pins down
// the fields the pipeline needs. Thresholds follow the general scheme
// of the procedure code: cognizable at three years, sessions-triable at
// seven.
var (
	punishClausePattern = regexp.MustCompile(`(?i)shall be punished|shall be liable to (?:imprisonment|fine)|shall also be liable`)
	deathPattern        = regexp.MustCompile(`(?i)punish(?:ed|able)?[^.]{0,80}\bwith death\b`)
	lifePattern         = regexp.MustCompile(`(?i)imprisonment for life`)
	termPattern         = regexp.MustCompile(`(?i)term which may extend to (\w+(?:-\w+)?) years?`)
	fineOnlyPattern     = regexp.MustCompile(`(?i)punish(?:ed|able)?[^.]{0,40}\bwith fine\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"twelve": 12, "fourteen": 14, "fifteen": 15, "twenty": 20,
}

// ClassifyOffence derives the procedural classification of a section
// from its punishment clause. Sections without one are not offences.
func ClassifyOffence(body string) types.OffenceClass {
	if !punishClausePattern.MatchString(body) {
		return types.OffenceClass{}
	}

	oc := types.OffenceClass{IsOffence: true}

	years := maxTermYears(body)
	switch {
	case deathPattern.MatchString(body):
		oc.Punishment = "death"
	case lifePattern.MatchString(body):
		oc.Punishment = types.PunishmentLife
	case years > 0:
		oc.Punishment = "imprisonment up to " + strconv.Itoa(years) + " years"
		oc.MaxTermDays = years * 365
	case fineOnlyPattern.MatchString(body):
		oc.Punishment = "fine"
	default:
		oc.Punishment = "imprisonment"
	}

	severe := oc.Punishment == "death" || oc.Punishment == types.PunishmentLife

	if severe || years >= 7 {
		oc.TriableBy = types.TriableSessions
	} else {
		oc.TriableBy = types.TriableMagistrate
	}

	oc.Cognizable = severe || years >= 3
	oc.Bailable = !oc.Cognizable

	return oc
}

// maxTermYears returns the largest stated imprisonment term in years
func maxTermYears(body string) int {
	max := 0
	for _, m := range termPattern.FindAllStringSubmatch(body, -1) {
		word := strings.ToLower(m[1])
		n, err := strconv.Atoi(word)
		if err != nil {
			n = numberWords[word]
		}
		if n > max {
			max = n
		}
	}
	return max
}
