package session

import (
	"testing"

	"github.com/rbenyoussef/wird/internal/quran"
)

func validSnapshot() Snapshot {
	return Snapshot{
		Range:       quran.VerseRange{Start: quran.VerseRef{Chapter: 2, Verse: 1}, End: quran.VerseRef{Chapter: 2, Verse: 10}},
		Tradition:   Hafs,
		Speed:       1.0,
		VerseRepeat: 1,
		RangeRepeat: 1,
		Priority:    PriorityList{{ReciterID: "r1", Enabled: true}},
	}
}

func TestParseTradition(t *testing.T) {
	tr, err := ParseTradition("warsh")
	if err != nil {
		t.Fatalf("ParseTradition: %v", err)
	}
	if tr != Warsh {
		t.Errorf("ParseTradition = %q, want warsh", tr)
	}
	if _, err := ParseTradition("unknown"); err == nil {
		t.Error("unknown tradition should fail")
	}
}

func TestRepeatCount(t *testing.T) {
	if Infinite.Reached(1000000) {
		t.Error("infinite repeat should never be reached")
	}
	if !Infinite.IsInfinite() {
		t.Error("Infinite should be infinite")
	}

	c := RepeatCount(3)
	if c.Reached(2) {
		t.Error("3 should not be reached after 2 plays")
	}
	if !c.Reached(3) {
		t.Error("3 should be reached after 3 plays")
	}
}

func TestSnapshot_Validate(t *testing.T) {
	if err := validSnapshot().Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"bad tradition", func(s *Snapshot) { s.Tradition = "x" }},
		{"zero speed", func(s *Snapshot) { s.Speed = 0 }},
		{"empty priority", func(s *Snapshot) { s.Priority = nil }},
		{"reversed range", func(s *Snapshot) {
			s.Range = quran.VerseRange{Start: quran.VerseRef{Chapter: 3, Verse: 1}, End: quran.VerseRef{Chapter: 2, Verse: 1}}
		}},
		{"bad override", func(s *Snapshot) {
			s.Overrides = []RangeOverride{{Covers: quran.Single(quran.VerseRef{Chapter: 2, Verse: 5})}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSnapshot_ActivePriority(t *testing.T) {
	s := validSnapshot()
	overrideList := PriorityList{{ReciterID: "r2", Enabled: true}}
	s.Overrides = []RangeOverride{{
		Covers: quran.VerseRange{
			Start: quran.VerseRef{Chapter: 2, Verse: 3},
			End:   quran.VerseRef{Chapter: 2, Verse: 5},
		},
		Priority: overrideList,
	}}

	got := s.ActivePriority(quran.VerseRef{Chapter: 2, Verse: 4})
	if len(got) != 1 || got[0].ReciterID != "r2" {
		t.Errorf("inside override: got %v, want override list", got)
	}

	got = s.ActivePriority(quran.VerseRef{Chapter: 2, Verse: 6})
	if len(got) != 1 || got[0].ReciterID != "r1" {
		t.Errorf("outside override: got %v, want global list", got)
	}
}

func TestPriorityList_EnabledIDs(t *testing.T) {
	l := PriorityList{
		{ReciterID: "a", Enabled: true},
		{ReciterID: "b", Enabled: false},
		{ReciterID: "c", Enabled: true},
	}
	ids := l.EnabledIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("EnabledIDs() = %v, want [a c]", ids)
	}
}
