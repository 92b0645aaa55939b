// Package config holds the typed configuration surface for a driver
// process. See spec.md §9: exactly these recognized options.
package config

import (
	"os"
	"strconv"
	"time"

	hversion "github.com/hashicorp/go-version"
)

// ProtocolVersion is the version this build of the wire codec speaks.
// Compared against peers' identification preambles with a
// hashicorp/go-version constraint rather than a bare integer equality
// check, so a future minor revision of the wire format can declare
// itself compatible without every peer needing a lockstep upgrade.
const ProtocolVersion = "1.0.0"

// SupportedConstraint is the range of peer protocol versions this
// build will talk to.
const SupportedConstraint = ">= 1.0.0, < 2.0.0"

// Config is the complete set of tunables a driver process accepts.
type Config struct {
	// TakeTripProbability is the Bernoulli parameter TripEngine uses
	// when deciding whether to accept an offer. 1.0 accepts always.
	TakeTripProbability float64

	// TestMode disables position randomization: drivers start at
	// (5*id, 5*id) and never drift.
	TestMode bool

	ElectionTimeout      time.Duration
	OfferTimeout         time.Duration
	PositionInterval     time.Duration
	TripStepDelay        time.Duration
	MaxDispatchDistance  uint32
}

// Default returns the configuration spec.md §9 lists as defaults.
func Default() Config {
	return Config{
		TakeTripProbability: 1.0,
		TestMode:            false,
		ElectionTimeout:     1000 * time.Millisecond,
		OfferTimeout:        300 * time.Millisecond,
		PositionInterval:    5000 * time.Millisecond,
		TripStepDelay:       750 * time.Millisecond,
		MaxDispatchDistance: 10,
	}
}

// FromEnv overlays environment variables onto the defaults, mirroring
// spec.md §6's "Environment variables" section.
func FromEnv() Config {
	c := Default()
	if raw, ok := os.LookupEnv("TAKE_TRIP_PROBABILITY"); ok {
		if p, err := strconv.ParseFloat(raw, 64); err == nil && p >= 0 && p <= 1 {
			c.TakeTripProbability = p
		}
	}
	if _, ok := os.LookupEnv("TEST"); ok {
		c.TestMode = true
	}
	return c
}

// CheckPeerVersion reports whether a peer's advertised protocol
// version is compatible with SupportedConstraint.
func CheckPeerVersion(peerVersion string) (bool, error) {
	v, err := hversion.NewVersion(peerVersion)
	if err != nil {
		return false, err
	}
	constraints, err := hversion.NewConstraint(SupportedConstraint)
	if err != nil {
		return false, err
	}
	return constraints.Check(v), nil
}

// Ports mirrors spec.md §6's port scheme.
const (
	MinDriverPort    = 8080
	MaxDriverPort    = 8100
	MinPassengerPort = 8000
	MaxPassengerPort = 8020
	PaymentPort      = 3000
)

// DriverPort returns the listening port for a given driver id.
func DriverPort(id uint32) int {
	return MinDriverPort + int(id)
}

// PassengerPort returns the listening port for a given passenger id.
func PassengerPort(id uint32) int {
	return MinPassengerPort + int(id)
}

// MaxDrivers bounds the startup dial sweep (spec.md §4.5): the driver
// dials every id in [0, MaxDrivers) at startup.
const MaxDrivers = MaxDriverPort - MinDriverPort
