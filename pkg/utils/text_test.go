package utils

import "testing"

func TestTruncate(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"shorter_than_max", "hello", 10, "hello"},
		{"exactly_max", "hello", 5, "hello"},
		{"truncated", "hello world", 5, "hello..."},
		{"zero_max_unchanged", "hello", 0, "hello"},
		{"negative_max_unchanged", "hello", -1, "hello"},
		{"empty", "", 5, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Truncate(tc.in, tc.maxLen); got != tc.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
			}
		})
	}
}
