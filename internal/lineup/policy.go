package lineup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iwvelando/lineup-optimizer/pkg/combinatorics"
)

// Kind identifies a lineup policy.
type Kind int

const (
	// Standard allows every ordering of the roster.
	Standard Kind = iota
	// AlternatingGender alternates men and women, each group wrapping on its own.
	AlternatingGender
	// NoConsecutiveFemales forbids two women batting back to back, counting
	// the wrap from the last batter to the first.
	NoConsecutiveFemales
)

func (k Kind) String() string {
	switch k {
	case Standard:
		return "STANDARD"
	case AlternatingGender:
		return "ALTERNATING_GENDER"
	case NoConsecutiveFemales:
		return "NO_CONSECUTIVE_FEMALES"
	default:
		return fmt.Sprintf("POLICY_%d", int(k))
	}
}

// Policy decides which orderings of a roster are legal lineups.
type Policy struct {
	Kind Kind
}

func (p Policy) String() string {
	return p.Kind.String()
}

// Gendered reports whether the policy needs every player to carry a gender.
func (p Policy) Gendered() bool {
	return p.Kind == AlternatingGender || p.Kind == NoConsecutiveFemales
}

// ParsePolicy accepts a policy name or numeric id, case-insensitively.
func ParsePolicy(value string) (Policy, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Policy{Kind: Standard}, nil
	}
	if id, err := strconv.Atoi(trimmed); err == nil {
		k := Kind(id)
		switch k {
		case Standard, AlternatingGender, NoConsecutiveFemales:
			return Policy{Kind: k}, nil
		}
		return Policy{}, fmt.Errorf("lineup policy id %d: %w", id, combinatorics.ErrInvalidArgument)
	}

	switch strings.ToUpper(strings.ReplaceAll(trimmed, "-", "_")) {
	case "STANDARD":
		return Policy{Kind: Standard}, nil
	case "ALTERNATING_GENDER", "ALTERNATING":
		return Policy{Kind: AlternatingGender}, nil
	case "NO_CONSECUTIVE_FEMALES":
		return Policy{Kind: NoConsecutiveFemales}, nil
	default:
		return Policy{}, fmt.Errorf("lineup policy %q: %w", value, combinatorics.ErrInvalidArgument)
	}
}

// MarshalText encodes the policy name.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.Kind.String()), nil
}

// UnmarshalText accepts anything ParsePolicy does.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
