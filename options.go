package si7021

import (
	"log/slog"
	"time"
)

// DelayAuto derives the conversion wait from the cached resolution.
const DelayAuto time.Duration = -1

type Opts struct {
	Address byte
	// HoldMaster selects the clock-stretching measurement commands (0xE5/0xE3).
	// No conversion wait is needed in that mode.
	HoldMaster bool
	// ConversionDelay is the wait between a no-hold measurement command and
	// the read. DelayAuto uses datasheet maximums for the current resolution.
	ConversionDelay time.Duration
	// Checksum enables CRC verification of humidity reads.
	Checksum bool
	Logger   *slog.Logger
}

type Opt func(*Opts)

func WithAddress(addr byte) Opt {
	return func(o *Opts) {
		o.Address = addr
	}
}

func WithHoldMaster() Opt {
	return func(o *Opts) {
		o.HoldMaster = true
	}
}

func WithConversionDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.ConversionDelay = delay
	}
}

func WithChecksum() Opt {
	return func(o *Opts) {
		o.Checksum = true
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = logger
	}
}
