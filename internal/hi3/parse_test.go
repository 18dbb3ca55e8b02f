package hi3

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseAcronyms(t *testing.T) {
	got, err := ParseAcronyms("  hor , HoFi,tp ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff([]string{"hor", "HoFi", "tp"}, got); diff != "" {
		t.Fatalf("acronyms mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"", ",", "a,,b", "hor tp"} {
		if _, err := ParseAcronyms(bad); err == nil {
			t.Errorf("ParseAcronyms(%q) accepted", bad)
		}
	}
}

func TestParseDeltaAcronyms(t *testing.T) {
	d, err := ParseDeltaAcronyms("+hor, -old ,+Hofi")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := DeltaAcronyms{Add: []string{"hor", "Hofi"}, Remove: []string{"old"}}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("delta mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseDeltaAcronyms("hor"); err == nil {
		t.Fatal("expected error without sign")
	}
}

func TestDeltaAcronymsApply(t *testing.T) {
	d := DeltaAcronyms{Add: []string{"HOR", "new", "gone"}, Remove: []string{"GONE", "old"}}
	result, added := d.Apply([]string{"hor", "old"})
	if diff := cmp.Diff([]string{"hor", "new"}, result); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"new"}, added); diff != "" {
		t.Fatalf("added mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBulkEntries(t *testing.T) {
	got, err := ParseBulkEntries("hor SS, herrscher of reason 3, hor 2 ,tp a")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []BulkEntry{
		{NameOrAcronym: "hor", Patch: Patch{Rank: RankSS, CoreRank: 2}},
		{NameOrAcronym: "herrscher of reason", Patch: Patch{CoreRank: 3}},
		{NameOrAcronym: "tp", Patch: Patch{Rank: RankA}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBulkEntriesRejects(t *testing.T) {
	tests := map[string]string{
		"no rank":   "hor",
		"bad rank":  "hor s9",
		"only rank": "ss",
		"too long":  strings.Repeat("a", 99) + " s",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseBulkEntries(in); err == nil {
				t.Fatalf("ParseBulkEntries(%q) accepted", in)
			}
		})
	}
}

func TestParseBulkNames(t *testing.T) {
	got, err := ParseBulkNames(" hor, herrscher  of reason ,hor ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff([]string{"hor", "herrscher of reason"}, got); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseBulkNames("hor,"); err == nil {
		t.Fatal("expected trailing comma to be rejected")
	}
}

func TestEmoji(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		url   string
	}{
		{"<:NatureMecha:825769059994828810>", true, "https://cdn.discordapp.com/emojis/825769059994828810.png"},
		{"<a:Dance:42>", true, "https://cdn.discordapp.com/emojis/42.gif"},
		{"😀", true, "https://twitter.github.io/twemoji/v/13.1.0/72x72/1f600.png"},
		{"🐛", true, "https://twitter.github.io/twemoji/v/13.1.0/72x72/1f41b.png"},
		{"😀😀", false, ""},
		{"a", false, ""},
		{"<:bad:>", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		if got := IsSingleEmoji(tt.in); got != tt.valid {
			t.Errorf("IsSingleEmoji(%q) = %v, want %v", tt.in, got, tt.valid)
		}
		url, ok := EmojiURL(tt.in)
		if ok != tt.valid || url != tt.url {
			t.Errorf("EmojiURL(%q) = %q, %v; want %q, %v", tt.in, url, ok, tt.url, tt.valid)
		}
	}
}
