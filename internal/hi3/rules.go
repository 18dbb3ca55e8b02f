package hi3

import (
	"cmp"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// RuleError is a rule violation whose message is meant for the user.
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func ruleErrorf(format string, args ...any) *RuleError {
	return &RuleError{Message: fmt.Sprintf(format, args...)}
}

// ValidateUserValkyrie checks a user's progress against the valkyrie's base
// rank and augment requirements.
func ValidateUserValkyrie(v Valkyrie, uv UserValkyrie) error {
	if !uv.Rank.AtLeast(v.BaseRank) {
		return ruleErrorf("❌ Battlesuit rank cannot be lower than valkyrie base rank (`%s` for **%s**)", v.BaseRank.Display(), v.Name)
	}
	if uv.CoreRank == 0 {
		return nil
	}
	if !v.HasAugment() {
		return ruleErrorf("❌ Valkyrie **%s** doesn't have an augment", v.Name)
	}
	minRank, ok := MinRankForCore(v.BaseRank, uv.CoreRank)
	if !ok {
		return ruleErrorf("❌ Invalid Augment Core Rank `%d` for **%s**", uv.CoreRank, v.Name)
	}
	if !uv.Rank.AtLeast(minRank) {
		return ruleErrorf("❌ Battlesuit rank must be atleast `%s` to have Augment Core Rank `%d` for **%s**", minRank.Display(), uv.CoreRank, v.Name)
	}
	return nil
}

// AugmentNotAllowedMessage is shown when an augment is set on a valkyrie
// whose base rank cannot have one.
func AugmentNotAllowedMessage() string {
	names := make([]string, 0, len(AugmentBaseRanks))
	for _, r := range AugmentBaseRanks {
		names = append(names, r.Display())
	}
	return "❌ Valkyrie which doesn't have base rank as one of `" + strings.Join(names, "`, `") + "` cannot have an augment"
}

// Patch is a partial update of a user's progress. Zero fields are unset.
type Patch struct {
	Rank     Rank
	CoreRank int
}

func (p Patch) Empty() bool { return p.Rank == "" && p.CoreRank == 0 }

// ApplyPatch merges p into the existing progress, or creates new progress
// for userID when existing is nil. New progress needs a rank.
func ApplyPatch(v Valkyrie, userID string, existing *UserValkyrie, p Patch) (UserValkyrie, error) {
	var uv UserValkyrie
	if existing == nil {
		if p.Rank == "" {
			return uv, ruleErrorf("❌ Battlesuit rank data neither supplied nor present previously for **%s**", v.Name)
		}
		uv = UserValkyrie{UserID: userID, ValkyrieID: v.ID}
	} else {
		uv = *existing
	}
	if p.Rank != "" {
		uv.Rank = p.Rank
	}
	if p.CoreRank != 0 {
		uv.CoreRank = p.CoreRank
	}
	if err := ValidateUserValkyrie(v, uv); err != nil {
		return uv, err
	}
	return uv, nil
}

// Fold returns the case-folded form of s used for case-insensitive
// comparisons and lookups. A Caser keeps state, so each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// CompareValkyries orders valkyries by character, nature, then name.
func CompareValkyries(a, b Valkyrie) int {
	return cmp.Or(
		strings.Compare(Fold(a.CharacterName), Fold(b.CharacterName)),
		cmp.Compare(a.Nature.Index(), b.Nature.Index()),
		strings.Compare(Fold(a.Name), Fold(b.Name)),
		strings.Compare(a.ID, b.ID),
	)
}

// CompareCharacters orders characters by name.
func CompareCharacters(a, b Character) int {
	return cmp.Or(
		strings.Compare(Fold(a.Name), Fold(b.Name)),
		strings.Compare(a.ID, b.ID),
	)
}

// CompareOwned orders a user's valkyries like the catalog, with the
// highest rank first inside a tie.
func CompareOwned(a, b OwnedValkyrie) int {
	if c := CompareValkyries(a.Valkyrie, b.Valkyrie); c != 0 {
		return c
	}
	return cmp.Compare(b.Rank.Index(), a.Rank.Index())
}
