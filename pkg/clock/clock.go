// Package clock provides an injectable time source and id generator.
//
// Every component that needs "now" or a new identifier goes through a
// Clock so tests can freeze and advance time instead of sleeping.
package clock

import (
	"time"

	"github.com/google/uuid"
)

// Clock is a monotonic-enough Unix-second time source.
type Clock interface {
	// Now returns the current time as Unix seconds.
	Now() int64
}

// NewID returns a new UUIDv4 string.
func NewID() string {
	return uuid.NewString()
}

// Real is the system clock backed by time.Now.
type Real struct{}

// Now returns time.Now().Unix().
func (Real) Now() int64 {
	return time.Now().Unix()
}

// Fake is a controllable clock for tests.
//
// The zero value starts at Unix second 0.
type Fake struct {
	t int64
}

// NewFake returns a Fake clock set to t.
func NewFake(t int64) *Fake {
	return &Fake{t: t}
}

// Now returns the fake's current time.
func (f *Fake) Now() int64 {
	return f.t
}

// Set pins the fake clock to t.
func (f *Fake) Set(t int64) {
	f.t = t
}

// Advance moves the fake clock forward by seconds.
func (f *Fake) Advance(seconds int64) {
	f.t += seconds
}
