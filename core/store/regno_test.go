package store

import "testing"

func TestBuildRegNo(t *testing.T) {
	cases := []struct {
		format string
		year   int
		seq    int64
		want   string
	}{
		{"INC-{year}-{seq:04}", 2026, 1, "INC-2026-0001"},
		{"INC-{year}-{seq:04}", 2026, 42, "INC-2026-0042"},
		{"INC-{year}-{seq:04}", 2026, 12345, "INC-2026-12345"},
		{"CAPA-{year}-{seq:04}", 2025, 7, "CAPA-2025-0007"},
		{"{seq}", 2026, 9, "9"},
		{"REP-{seq:06}", 2026, 3, "REP-000003"},
		{"", 2026, 5, "INC-2026-0005"},
	}
	for _, tc := range cases {
		if got := BuildRegNo(tc.format, tc.year, tc.seq); got != tc.want {
			t.Errorf("BuildRegNo(%q, %d, %d) = %q, want %q", tc.format, tc.year, tc.seq, got, tc.want)
		}
	}
}

func TestNextSequence(t *testing.T) {
	if got := NextSequence(0); got != 1 {
		t.Fatalf("NextSequence(0) = %d, want 1", got)
	}
	if got := NextSequence(41); got != 42 {
		t.Fatalf("NextSequence(41) = %d, want 42", got)
	}
	if got := NextSequence(-5); got != 1 {
		t.Fatalf("NextSequence(-5) = %d, want 1", got)
	}
}
