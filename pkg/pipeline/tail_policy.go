package pipeline

import (
	"fmt"
	"strings"
)

// TailPolicy defines what happens to the samples left in the frame
// buffer when a session ends.
type TailPolicy int

const (
	// TailPolicyPad zero-fills the residual up to a full frame and
	// processes it, so no captured sample is missing in the output.
	TailPolicyPad = TailPolicy(iota)

	// TailPolicyDiscard drops the residual from the processed output.
	TailPolicyDiscard
)

func (p TailPolicy) String() string {
	switch p {
	case TailPolicyPad:
		return "pad"
	case TailPolicyDiscard:
		return "discard"
	default:
		return fmt.Sprintf("unknown_tail_policy_%d", int(p))
	}
}

func ParseTailPolicy(s string) (TailPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pad":
		return TailPolicyPad, nil
	case "discard":
		return TailPolicyDiscard, nil
	default:
		return 0, fmt.Errorf("unknown tail policy '%s' (expected 'pad' or 'discard')", s)
	}
}

func (p TailPolicy) MarshalText() ([]byte, error) {
	if p != TailPolicyPad && p != TailPolicyDiscard {
		return nil, fmt.Errorf("unknown tail policy %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *TailPolicy) UnmarshalText(b []byte) error {
	v, err := ParseTailPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
