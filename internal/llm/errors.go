package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// Class groups backend failures for the fallback policy.
type Class string

const (
	ClassCapacity  Class = "capacity"  // out of credits, quota or rate limited
	ClassTimeout   Class = "timeout"   // deadline hit
	ClassTransport Class = "transport" // network or upstream 5xx
	ClassMalformed Class = "malformed" // reply could not be parsed into fields
	ClassFatal     Class = "fatal"
)

// ErrMalformed marks a reply that did not contain usable JSON.
var ErrMalformed = errors.New("malformed model response")

// BackendError is a failed call to one backend.
type BackendError struct {
	Backend    string
	StatusCode int    // 0 when no response was received
	Message    string // provider error message, if any
	Err        error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString(e.Backend)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BackendError) Unwrap() error { return e.Err }

// Classify maps any backend error onto a Class.
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMalformed) {
		return ClassMalformed
	}
	if common.IsTimeout(err) {
		return ClassTimeout
	}

	var be *BackendError
	if errors.As(err, &be) && be.StatusCode != 0 {
		switch code := be.StatusCode; {
		case code == http.StatusPaymentRequired, code == http.StatusTooManyRequests:
			return ClassCapacity
		case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
			return ClassTimeout
		case code >= 500:
			return ClassTransport
		}
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"credits", "quota", "rate limit", "insufficient"} {
		if strings.Contains(msg, hint) {
			return ClassCapacity
		}
	}

	if errors.Is(err, context.Canceled) {
		return ClassFatal
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ClassTimeout
		}
		return ClassTransport
	}
	return ClassFatal
}

// ParseClasses turns config strings into a class set; unknown names are ignored.
func ParseClasses(names []string) map[Class]bool {
	out := make(map[Class]bool, len(names))
	for _, n := range names {
		switch c := Class(strings.ToLower(strings.TrimSpace(n))); c {
		case ClassCapacity, ClassTimeout, ClassTransport, ClassMalformed, ClassFatal:
			out[c] = true
		}
	}
	return out
}
