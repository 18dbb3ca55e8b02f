package hi3

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxBulkInputLen caps the add-many and delete-many inputs.
const MaxBulkInputLen = 100

var (
	acronymsPattern      = regexp.MustCompile(`^\s*\w+(\s*,\s*\w+)*\s*$`)
	deltaAcronymsPattern = regexp.MustCompile(`^\s*[+-]\w+(\s*,\s*[+-]\w+)*\s*$`)
	bulkNamesPattern     = regexp.MustCompile(`^\s*(\w+\s+)*\w+(\s*,\s*(\w+\s+)*\w+)*\s*$`)
	bulkEntriesPattern   = compileBulkEntriesPattern()
	listSeparator        = regexp.MustCompile(`\s*,\s*`)
)

func compileBulkEntriesPattern() *regexp.Regexp {
	alts := make([]string, 0, len(Ranks)+len(AugmentCoreRanks))
	// Longer ranks first so "ss1" is not read as "s".
	for i := len(Ranks) - 1; i >= 0; i-- {
		alts = append(alts, string(Ranks[i]))
	}
	for _, c := range AugmentCoreRanks {
		alts = append(alts, strconv.Itoa(c))
	}
	rank := "(" + strings.Join(alts, "|") + ")"
	entry := `(\w+\s+)+` + rank
	return regexp.MustCompile(`(?i)^\s*` + entry + `(\s*,\s*` + entry + `)*\s*$`)
}

func splitList(s string) []string {
	return listSeparator.Split(strings.TrimSpace(s), -1)
}

// ParseAcronyms reads "<acronym> (, ...)".
func ParseAcronyms(s string) ([]string, error) {
	if !acronymsPattern.MatchString(s) {
		return nil, &RuleError{Message: "Please use `<acronym> (, ...)` notation"}
	}
	return splitList(s), nil
}

// DeltaAcronyms is a set of acronym additions and removals.
type DeltaAcronyms struct {
	Add    []string
	Remove []string
}

// ParseDeltaAcronyms reads "<+/-><acronym> (, ...)".
func ParseDeltaAcronyms(s string) (DeltaAcronyms, error) {
	var d DeltaAcronyms
	if !deltaAcronymsPattern.MatchString(s) {
		return d, &RuleError{Message: "Please use `<+/-><acronym> (, ...)` notation"}
	}
	for _, item := range splitList(s) {
		if strings.HasPrefix(item, "+") {
			d.Add = append(d.Add, item[1:])
		} else {
			d.Remove = append(d.Remove, item[1:])
		}
	}
	return d, nil
}

// Apply returns the acronym list after d and the acronyms it newly added.
// Comparison ignores case; removals win over additions.
func (d DeltaAcronyms) Apply(current []string) (result, added []string) {
	seen := make(map[string]bool, len(current)+len(d.Add))
	result = append(result, current...)
	for _, a := range current {
		seen[Fold(a)] = true
	}
	for _, a := range d.Add {
		if seen[Fold(a)] {
			continue
		}
		seen[Fold(a)] = true
		result = append(result, a)
		added = append(added, a)
	}
	removed := make(map[string]bool, len(d.Remove))
	for _, a := range d.Remove {
		removed[Fold(a)] = true
	}
	keep := func(list []string) []string {
		out := list[:0:0]
		for _, a := range list {
			if !removed[Fold(a)] {
				out = append(out, a)
			}
		}
		return out
	}
	return keep(result), keep(added)
}

// BulkEntry is one "<valk> <rank/aug rank>" group of an add-many input,
// merged across repeats of the same valkyrie.
type BulkEntry struct {
	NameOrAcronym string
	Patch
}

// ParseBulkEntries reads "<valk> <rank/aug rank> (, ...)". Entries naming
// the same valkyrie are merged in input order.
func ParseBulkEntries(s string) ([]BulkEntry, error) {
	if len(s) > MaxBulkInputLen {
		return nil, &RuleError{Message: "Keep the length of input less than " + strconv.Itoa(MaxBulkInputLen)}
	}
	if !bulkEntriesPattern.MatchString(s) {
		return nil, &RuleError{Message: "Please use `<valk> <rank/aug rank> (, ...)` notation"}
	}
	var out []BulkEntry
	index := make(map[string]int)
	for _, raw := range splitList(s) {
		parts := strings.Fields(raw)
		last := parts[len(parts)-1]
		name := strings.Join(parts[:len(parts)-1], " ")

		var p Patch
		if n, err := strconv.Atoi(last); err == nil {
			p.CoreRank = n
		} else {
			p.Rank, _ = ParseRank(last)
		}

		i, ok := index[name]
		if !ok {
			index[name] = len(out)
			out = append(out, BulkEntry{NameOrAcronym: name, Patch: p})
			continue
		}
		if p.Rank != "" {
			out[i].Rank = p.Rank
		}
		if p.CoreRank != 0 {
			out[i].CoreRank = p.CoreRank
		}
	}
	return out, nil
}

// ParseBulkNames reads "<valk> (, ...)" and drops repeated names.
func ParseBulkNames(s string) ([]string, error) {
	if len(s) > MaxBulkInputLen {
		return nil, &RuleError{Message: "Keep the length of input less than " + strconv.Itoa(MaxBulkInputLen)}
	}
	if !bulkNamesPattern.MatchString(s) {
		return nil, &RuleError{Message: "Please use `<valk> (, ...)` notation"}
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range splitList(s) {
		name = strings.Join(strings.Fields(name), " ")
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}
