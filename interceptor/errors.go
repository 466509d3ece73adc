package interceptor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMockMismatch is matched by every MismatchError.
var ErrMockMismatch = errors.New("request matched no mock rule")

// MismatchError describes a call that no installed rule answered.
type MismatchError struct {
	Request    string
	Payload    map[string]string
	Candidates []string // rules for the same URL whose matcher did not fit
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "request matched no mock rule: %s", e.Request)
	if len(e.Payload) > 0 {
		fmt.Fprintf(&b, " with payload %s", Matcher(e.Payload))
	}
	if len(e.Candidates) > 0 {
		candidates := append([]string(nil), e.Candidates...)
		sort.Strings(candidates)
		fmt.Fprintf(&b, " (rules for this URL: %s)", strings.Join(candidates, "; "))
	}
	return b.String()
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMockMismatch
}
