// Package hi3 holds the Honkai Impact 3rd catalog types and the rules that
// govern battlesuit ranks, natures and augment cores.
package hi3

import (
	"slices"
	"strings"
	"time"
)

// Rank is a battlesuit rank. The zero value means "not set".
type Rank string

const (
	RankB   Rank = "b"
	RankA   Rank = "a"
	RankS   Rank = "s"
	RankS1  Rank = "s1"
	RankS2  Rank = "s2"
	RankS3  Rank = "s3"
	RankSS  Rank = "ss"
	RankSS1 Rank = "ss1"
	RankSS2 Rank = "ss2"
	RankSS3 Rank = "ss3"
	RankSSS Rank = "sss"
)

// Ranks lists every rank from lowest to highest.
var Ranks = []Rank{RankB, RankA, RankS, RankS1, RankS2, RankS3, RankSS, RankSS1, RankSS2, RankSS3, RankSSS}

// BaseRanks are the ranks a valkyrie can be obtained at.
var BaseRanks = []Rank{RankB, RankA, RankS}

// AugmentBaseRanks are the base ranks whose valkyries may have an augment.
var AugmentBaseRanks = []Rank{RankA, RankS}

// ParseRank accepts a rank in any letter case.
func ParseRank(s string) (Rank, bool) {
	r := Rank(strings.ToLower(strings.TrimSpace(s)))
	if r.Index() < 0 {
		return "", false
	}
	return r, true
}

// Index is the position of r in Ranks, or -1.
func (r Rank) Index() int {
	return slices.Index(Ranks, r)
}

func (r Rank) Display() string {
	return strings.ToUpper(string(r))
}

// AtLeast reports whether r is ranked at or above min.
func (r Rank) AtLeast(min Rank) bool {
	return r.Index() >= min.Index()
}

func (r Rank) IsBase() bool {
	return slices.Contains(BaseRanks, r)
}

// Nature is the elemental type of a valkyrie.
type Nature string

const (
	NatureMecha     Nature = "mech"
	NatureBiologic  Nature = "bio"
	NaturePsychic   Nature = "psy"
	NatureQuantum   Nature = "qua"
	NatureImaginary Nature = "imag"
)

// NatureInfo carries how a nature is shown to users.
type NatureInfo struct {
	Value   Nature
	Display string
	Emoji   string
}

// Natures is ordered the way natures are listed and sorted.
var Natures = []NatureInfo{
	{Value: NatureMecha, Display: "Mecha", Emoji: "<:NatureMecha:825769059994828810>"},
	{Value: NatureBiologic, Display: "Biologic", Emoji: "<:NatureBiologic:825769849229672459>"},
	{Value: NaturePsychic, Display: "Psychic", Emoji: "<:NaturePsychic:825770181912690688>"},
	{Value: NatureQuantum, Display: "Quantum", Emoji: "<:NatureQuantum:826695360168722454>"},
	{Value: NatureImaginary, Display: "Imaginary", Emoji: "<:NatureImaginary:901671589614075955>"},
}

func (n Nature) Index() int {
	return slices.IndexFunc(Natures, func(info NatureInfo) bool { return info.Value == n })
}

// Info returns the display data for n. Unknown natures echo their value.
func (n Nature) Info() NatureInfo {
	if i := n.Index(); i >= 0 {
		return Natures[i]
	}
	return NatureInfo{Value: n, Display: string(n)}
}

func (n Nature) Valid() bool { return n.Index() >= 0 }

const (
	MinCoreRank = 1
	MaxCoreRank = 6
)

// AugmentCoreRanks lists the valid augment core ranks.
var AugmentCoreRanks = []int{1, 2, 3, 4, 5, 6}

// augmentRequirements[baseRank][coreRank-1] is the lowest battlesuit rank
// that may hold that core rank.
var augmentRequirements = map[Rank][MaxCoreRank]Rank{
	RankA: {RankA, RankS, RankS, RankSS, RankSS, RankSSS},
	RankS: {RankS, RankS, RankS, RankS, RankSS, RankSSS},
}

func ValidCoreRank(core int) bool {
	return core >= MinCoreRank && core <= MaxCoreRank
}

// CanHaveAugment reports whether valkyries of the given base rank can have
// an augment core.
func CanHaveAugment(base Rank) bool {
	return slices.Contains(AugmentBaseRanks, base)
}

// MinRankForCore returns the minimum battlesuit rank for a core rank.
func MinRankForCore(base Rank, core int) (Rank, bool) {
	req, ok := augmentRequirements[base]
	if !ok || !ValidCoreRank(core) {
		return "", false
	}
	return req[core-1], true
}

// Character is a playable character that owns battlesuits.
type Character struct {
	ID        string
	Name      string
	Emoji     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valkyrie is a battlesuit of a character.
type Valkyrie struct {
	ID          string
	CharacterID string
	// CharacterName is filled by queries that join the owning character.
	CharacterName string
	Name          string
	Nature        Nature
	BaseRank      Rank
	Acronyms      []string
	Emoji         string
	AugEmoji      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (v Valkyrie) CanHaveAugment() bool {
	return CanHaveAugment(v.BaseRank)
}

// HasAugment is true once an augment emoji has been registered.
func (v Valkyrie) HasAugment() bool {
	return v.CanHaveAugment() && v.AugEmoji != ""
}

// UserValkyrie is one user's progress on a valkyrie. CoreRank 0 means no
// augment core.
type UserValkyrie struct {
	ID         string
	UserID     string
	ValkyrieID string
	Rank       Rank
	CoreRank   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OwnedValkyrie pairs a user's progress with the valkyrie it refers to.
type OwnedValkyrie struct {
	UserValkyrie
	Valkyrie Valkyrie
}
