package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

type netErr struct{ timeout bool }

func (e netErr) Error() string   { return "dial tcp: connection refused" }
func (e netErr) Timeout() bool   { return e.timeout }
func (e netErr) Temporary() bool { return false }

var _ net.Error = netErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ""},
		{"402", &BackendError{Backend: "m", StatusCode: 402, Err: errors.New("non-2xx status: 402")}, ClassCapacity},
		{"429", &BackendError{Backend: "m", StatusCode: 429}, ClassCapacity},
		{"credits text", errors.New("This request requires more credits"), ClassCapacity},
		{"504", &BackendError{Backend: "m", StatusCode: 504}, ClassTimeout},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), ClassTimeout},
		{"503", &BackendError{Backend: "m", StatusCode: 503}, ClassTransport},
		{"net", &BackendError{Backend: "m", Err: netErr{}}, ClassTransport},
		{"net timeout", netErr{timeout: true}, ClassTimeout},
		{"malformed", &BackendError{Backend: "m", Err: fmt.Errorf("%w: no choices", ErrMalformed)}, ClassMalformed},
		{"400", &BackendError{Backend: "m", StatusCode: 400, Message: "bad model"}, ClassFatal},
		{"canceled", context.Canceled, ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseClasses(t *testing.T) {
	got := ParseClasses([]string{" Capacity", "timeout", "bogus"})
	if !got[ClassCapacity] || !got[ClassTimeout] || len(got) != 2 {
		t.Errorf("ParseClasses = %v", got)
	}
}
