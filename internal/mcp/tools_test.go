package mcp

import "testing"

func TestMaskValue(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"ab", "**"},
		{"abcd", "****"},
		{"abcdef", "****ef"},
		{"abcdefghij", "******ghij"},
	}
	for _, c := range cases {
		if got := maskValue(c.in); got != c.want {
			t.Errorf("maskValue(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
