package requester

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: OK},
		{name: "invalid address", err: fmt.Errorf("%w: empty", ErrInvalidAddress), want: InvalidAddress},
		{name: "deadline", err: &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, want: Timeout},
		{name: "net timeout", err: &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, want: Timeout},
		{name: "status", err: &StatusError{Code: 404}, want: Network},
		{name: "other", err: errors.New("connection reset"), want: Network},
		{name: "panic", err: &PanicError{Value: "boom"}, want: Unknown},
		{name: "unsupported method", err: fmt.Errorf("%w %q", ErrUnsupportedMethod, "DELETE"), want: Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	if got, err := parseAddress(" http://localhost:8080/echo "); err != nil || got != "http://localhost:8080/echo" {
		t.Fatalf("unexpected parse result %q err=%v", got, err)
	}
	for _, addr := range []string{"not a url", "localhost:8080", "mailto:a@b.c", "http://", "%zz"} {
		if _, err := parseAddress(addr); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("parseAddress(%q) expected ErrInvalidAddress, got %v", addr, err)
		}
	}
}
