package hi3

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRank(t *testing.T) {
	for _, in := range []string{"b", "A", " ss2 ", "SSS"} {
		if _, ok := ParseRank(in); !ok {
			t.Errorf("ParseRank(%q) rejected", in)
		}
	}
	for _, in := range []string{"", "c", "s4", "ssss"} {
		if _, ok := ParseRank(in); ok {
			t.Errorf("ParseRank(%q) accepted", in)
		}
	}
}

func TestMinRankForCore(t *testing.T) {
	tests := []struct {
		base Rank
		core int
		want Rank
		ok   bool
	}{
		{RankA, 1, RankA, true},
		{RankA, 2, RankS, true},
		{RankA, 4, RankSS, true},
		{RankA, 6, RankSSS, true},
		{RankS, 4, RankS, true},
		{RankS, 5, RankSS, true},
		{RankB, 1, "", false},
		{RankS, 7, "", false},
		{RankS, 0, "", false},
	}
	for _, tt := range tests {
		got, ok := MinRankForCore(tt.base, tt.core)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MinRankForCore(%s, %d) = %q, %v; want %q, %v", tt.base, tt.core, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidateUserValkyrie(t *testing.T) {
	withAug := Valkyrie{ID: "v1", Name: "Herrscher of Reason", BaseRank: RankA, AugEmoji: "<:HoR:1>"}
	noAug := Valkyrie{ID: "v2", Name: "Valkyrie Ranger", BaseRank: RankB}
	sRankNoEmoji := Valkyrie{ID: "v3", Name: "Starchasm Nyx", BaseRank: RankS}

	tests := []struct {
		name string
		valk Valkyrie
		uv   UserValkyrie
		want string
	}{
		{"ok", withAug, UserValkyrie{Rank: RankS}, ""},
		{"below base", withAug, UserValkyrie{Rank: RankB}, "❌ Battlesuit rank cannot be lower than valkyrie base rank (`A` for **Herrscher of Reason**)"},
		{"core without augment", noAug, UserValkyrie{Rank: RankS, CoreRank: 1}, "❌ Valkyrie **Valkyrie Ranger** doesn't have an augment"},
		{"augment not registered", sRankNoEmoji, UserValkyrie{Rank: RankS, CoreRank: 1}, "❌ Valkyrie **Starchasm Nyx** doesn't have an augment"},
		{"core needs higher rank", withAug, UserValkyrie{Rank: RankS3, CoreRank: 4}, "❌ Battlesuit rank must be atleast `SS` to have Augment Core Rank `4` for **Herrscher of Reason**"},
		{"core satisfied", withAug, UserValkyrie{Rank: RankSSS, CoreRank: 6}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserValkyrie(tt.valk, tt.uv)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var re *RuleError
			if !errors.As(err, &re) {
				t.Fatalf("expected RuleError, got %v", err)
			}
			if re.Message != tt.want {
				t.Fatalf("message = %q, want %q", re.Message, tt.want)
			}
		})
	}
}

func TestApplyPatch(t *testing.T) {
	v := Valkyrie{ID: "v1", Name: "Kiana", BaseRank: RankA, AugEmoji: "<:K:1>"}

	if _, err := ApplyPatch(v, "u1", nil, Patch{CoreRank: 1}); err == nil {
		t.Fatal("expected error creating progress without a rank")
	}

	uv, err := ApplyPatch(v, "u1", nil, Patch{Rank: RankS})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if uv.UserID != "u1" || uv.ValkyrieID != "v1" || uv.Rank != RankS {
		t.Fatalf("unexpected progress: %+v", uv)
	}

	uv.ID = "uv1"
	updated, err := ApplyPatch(v, "u1", &uv, Patch{CoreRank: 2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "uv1" || updated.Rank != RankS || updated.CoreRank != 2 {
		t.Fatalf("unexpected update: %+v", updated)
	}
}

func TestCompareValkyries(t *testing.T) {
	valks := []Valkyrie{
		{ID: "3", CharacterName: "Mei", Nature: NatureMecha, Name: "Lightning Empress"},
		{ID: "1", CharacterName: "kiana", Nature: NaturePsychic, Name: "Herrscher of Flamescion"},
		{ID: "2", CharacterName: "Kiana", Nature: NatureMecha, Name: "White Comet"},
		{ID: "4", CharacterName: "Kiana", Nature: NatureMecha, Name: "Valkyrie Ranger"},
	}
	slices.SortFunc(valks, CompareValkyries)
	var got []string
	for _, v := range valks {
		got = append(got, v.ID)
	}
	if diff := cmp.Diff([]string{"4", "2", "1", "3"}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestNatureInfo(t *testing.T) {
	if NatureQuantum.Info().Display != "Quantum" {
		t.Fatalf("unexpected display: %q", NatureQuantum.Info().Display)
	}
	if Nature("fire").Valid() {
		t.Fatal("unknown nature reported valid")
	}
}

func TestAugmentNotAllowedMessage(t *testing.T) {
	want := "❌ Valkyrie which doesn't have base rank as one of `A`, `S` cannot have an augment"
	if got := AugmentNotAllowedMessage(); got != want {
		t.Fatalf("got %q", got)
	}
}
