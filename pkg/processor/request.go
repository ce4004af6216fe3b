package processor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRequest   = errors.New("invalid processing request")
	ErrValueUnavailable = errors.New("stored device value unavailable")
)

// Mode selects how a fresh meter value is combined with stored values.
type Mode int

const (
	// Overwrite submits the meter value unchanged.
	Overwrite Mode = iota
	// Subtract submits meter value minus the comparison device value.
	Subtract
	// Add submits the target's stored value plus the delta between the
	// meter value and the comparison device value.
	Add
)

func (m Mode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Subtract:
		return "subtract"
	case Add:
		return "add"
	}
	return "unknown"
}

// Request is one parsed idx:CommandNr:mode[:idx2] triple. CompareID is
// set if and only if the mode consumes a comparison device.
type Request struct {
	TargetID  int
	CommandID int
	Mode      Mode
	CompareID *int
}

// ParseRequest parses a command line value parameter. Integers accept
// the 0x prefix, so command ids can be given as register numbers.
func ParseRequest(s string) (*Request, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("%w: %q, expected idx:CommandNr:mode[:idx2]", ErrInvalidRequest, s)
	}

	numbers := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(part, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer in %q", ErrInvalidRequest, part, s)
		}
		numbers = append(numbers, int(n))
	}

	if numbers[2] < int(Overwrite) || numbers[2] > int(Add) {
		return nil, fmt.Errorf("%w: unknown mode %d in %q", ErrInvalidRequest, numbers[2], s)
	}

	req := &Request{
		TargetID:  numbers[0],
		CommandID: numbers[1],
		Mode:      Mode(numbers[2]),
	}
	if len(numbers) == 4 {
		req.CompareID = &numbers[3]
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %q", err, s)
	}
	return req, nil
}

// Validate enforces the mode/comparison-id presence invariant before
// any arithmetic or I/O happens.
func (r *Request) Validate() error {
	needsCompare := r.Mode == Subtract || r.Mode == Add
	if needsCompare && r.CompareID == nil {
		return fmt.Errorf("%w: mode %s requires a comparison device idx", ErrInvalidRequest, r.Mode)
	}
	if !needsCompare && r.CompareID != nil {
		return fmt.Errorf("%w: mode %s takes no comparison device idx", ErrInvalidRequest, r.Mode)
	}
	return nil
}
