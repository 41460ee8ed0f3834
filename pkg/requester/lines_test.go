package requester

import "testing"

func TestJoinLines(t *testing.T) {
	cases := []struct {
		name string
		body string
		sep  string
		want string
	}{
		{name: "empty", body: "", want: ""},
		{name: "single line", body: "hello", want: "hello"},
		{name: "lf", body: "line1\nline2", want: "line1line2"},
		{name: "crlf trailing", body: "a\r\nb\r\n", want: "ab"},
		{name: "lone cr", body: "a\rb", want: "ab"},
		{name: "blank line kept", body: "a\n\nb", sep: "|", want: "a||b"},
		{name: "trailing newline dropped once", body: "a\n\n", sep: "|", want: "a|"},
		{name: "newline separator", body: "a\r\nb", sep: "\n", want: "a\nb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := joinLines([]byte(tc.body), tc.sep); got != tc.want {
				t.Fatalf("joinLines(%q, %q) = %q, want %q", tc.body, tc.sep, got, tc.want)
			}
		})
	}
}
