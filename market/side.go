package market

import "fmt"

// Side is the direction of a position. The zero value is flat.
type Side int8

const (
	Flat  Side = 0
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Dir returns +1 for long, -1 for short and 0 when flat.
func (s Side) Dir() int { return int(s) }

// MarshalText renders the side the way trade logs expect it.
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses LONG, SHORT or FLAT. Anything else is an error and
// leaves s unchanged.
func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "LONG":
		*s = Long
	case "SHORT":
		*s = Short
	case "FLAT":
		*s = Flat
	default:
		return fmt.Errorf("market: unknown side %q", b)
	}
	return nil
}

// Signal is the only output a strategy produces.
type Signal int

const (
	None Signal = iota
	Buy
	Sell
	Exit
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	case Exit:
		return "EXIT"
	default:
		return "NONE"
	}
}

// IsEntry reports whether the signal asks to open a position.
func (s Signal) IsEntry() bool { return s == Buy || s == Sell }

// Side maps an entry signal to the side it opens.
func (s Signal) Side() Side {
	switch s {
	case Buy:
		return Long
	case Sell:
		return Short
	default:
		return Flat
	}
}
