// Package strategies holds the signal generators. A strategy consumes one
// bar at a time and emits a market.Signal; it keeps whatever rolling state
// it needs and is never shared between symbols.
package strategies

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/bartrader/market"
)

// ErrUnknownStrategy is returned by New for a name nobody registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is the minimal interface the engine drives.
type Strategy interface {
	Name() string
	OnBar(b market.Bar, ctx *Context) market.Signal
}

// Context is the mutable state shared between the engine and a strategy.
// The engine owns the position direction and writes it before every call.
type Context struct {
	position market.Side
}

// Position returns the current net direction: Long, Short or Flat.
func (c *Context) Position() market.Side {
	if c == nil {
		return market.Flat
	}
	return c.position
}

func (c *Context) SetPosition(s market.Side) { c.position = s }

// Factory builds a fresh strategy instance from params.
type Factory func(p Params) Strategy

var registry = map[string]Factory{}

// Register adds a factory under one or more names.
func Register(f Factory, names ...string) {
	for _, n := range names {
		registry[normalize(n)] = f
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Known reports whether name resolves to a registered strategy.
func Known(name string) bool {
	_, ok := registry[normalize(name)]
	return ok
}

// Names lists the registered names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New builds a new, independent strategy instance.
func New(name string, p Params) (Strategy, error) {
	f, ok := registry[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	return f(p), nil
}

func init() {
	Register(func(p Params) Strategy { return NewTrendFollowing(p) }, "trend_following", "trend-following", "keltner")
	Register(func(p Params) Strategy { return NewScalping(p) }, "scalping")
	Register(func(Params) Strategy { return Noop{} }, "noop", "none")
}
