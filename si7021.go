// Package si7021 drives the Silicon Labs Si7021 relative humidity and
// temperature sensor over I2C.
//
// AskFor... methods query the device and update the cached State; the plain
// accessors (Humidity, Temperature, Resolution...) only return cached values.
// Set... methods write configuration registers and verify them by reading
// them back.
//
// The driver does no locking of its own. A handle and its bus must be used by
// one caller at a time.
package si7021

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultAddress is the fixed 7-bit I2C address of the device.
const DefaultAddress = 0x40

// State holds the most recently observed device values.
type State struct {
	SerialNumber     uint64       `yaml:"serial_number"`
	FirmwareRevision byte         `yaml:"firmware_revision"`
	Humidity         float32      `yaml:"humidity"`
	Temperature      float32      `yaml:"temperature"`
	HeaterEnabled    bool         `yaml:"heater_enabled"`
	Resolution       Resolution   `yaml:"resolution"`
	HeaterConfig     HeaterConfig `yaml:"heater_config"`
}

// Si7021 represents Silicon Labs Si7021 humidity/temperature sensor.
// Typical usage:
//
//	s, err := si7021.Open(ctx, bus)
//	if err != nil {
//		// s is still usable, some fields were not refreshed
//	}
//	rh, err := s.AskForHumidity(ctx)
type Si7021 struct {
	transport I2CBus
	config    Opts
	log       *slog.Logger
	state     State
}

func New(transport I2CBus, opts ...Opt) *Si7021 {
	config := Opts{
		Address:         DefaultAddress,
		ConversionDelay: DelayAuto,
	}
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Si7021{
		transport: transport,
		config:    config,
		log:       logger.With("device", "si7021", "addr", fmt.Sprintf("%#x", config.Address)),
	}
}

// Open creates a driver and refreshes every cached field. The returned handle
// is never nil: a failed query only leaves its field at the zero value and is
// reported through the joined error.
func Open(ctx context.Context, transport I2CBus, opts ...Opt) (*Si7021, error) {
	s := New(transport, opts...)
	return s, s.Refresh(ctx)
}

// Refresh issues every ask query in a fixed order, continuing past failures.
func (s *Si7021) Refresh(ctx context.Context) error {
	steps := []struct {
		name string
		ask  func(context.Context) error
	}{
		{"serial number", func(ctx context.Context) error { _, err := s.AskForSerialNumber(ctx); return err }},
		{"firmware", func(ctx context.Context) error { _, err := s.AskForFirmwareRev(ctx); return err }},
		{"temperature", func(ctx context.Context) error { _, err := s.AskForTemperature(ctx); return err }},
		{"humidity", func(ctx context.Context) error { _, err := s.AskForHumidity(ctx); return err }},
		{"heater", func(ctx context.Context) error { _, err := s.AskForHeater(ctx); return err }},
		{"resolution", func(ctx context.Context) error { _, err := s.AskForResolution(ctx); return err }},
		{"heater config", func(ctx context.Context) error { _, err := s.AskForHeaterConfig(ctx); return err }},
	}
	var errs []error
	for _, step := range steps {
		if err := step.ask(ctx); err != nil {
			s.log.Warn("refresh query failed", "query", step.name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// State returns a copy of the cached values.
func (s *Si7021) State() State {
	return s.state
}

// AskForSerialNumber reads both electronic ID blocks. The first byte of the
// second block is also cached as the firmware revision.
func (s *Si7021) AskForSerialNumber(ctx context.Context) (uint64, error) {
	first := make([]byte, 4)
	if err := s.transfer(ctx, cmdSerialFirstAccess, first); err != nil {
		return 0, fmt.Errorf("si7021: serial number first access failed: %w", err)
	}
	second := make([]byte, 4)
	if err := s.transfer(ctx, cmdSerialSecondAccess, second); err != nil {
		return 0, fmt.Errorf("si7021: serial number second access failed: %w", err)
	}
	s.state.SerialNumber = assembleSerial(first, second)
	s.state.FirmwareRevision = second[0]
	return s.state.SerialNumber, nil
}

func assembleSerial(first, second []byte) uint64 {
	return uint64(binary.BigEndian.Uint32(first))<<32 | uint64(binary.BigEndian.Uint32(second))
}

func (s *Si7021) SerialNumber() uint64 {
	return s.state.SerialNumber
}

// AskForFirmwareRev re-reads the first byte of the second electronic ID block.
func (s *Si7021) AskForFirmwareRev(ctx context.Context) (byte, error) {
	buf := make([]byte, 1)
	if err := s.transfer(ctx, cmdSerialSecondAccess, buf); err != nil {
		return 0, fmt.Errorf("si7021: firmware revision read failed: %w", err)
	}
	s.state.FirmwareRevision = buf[0]
	return buf[0], nil
}

func (s *Si7021) FirmwareRev() byte {
	return s.state.FirmwareRevision
}

// FirmwareVersion is the value returned by the firmware revision command.
type FirmwareVersion byte

const (
	FirmwareV1 FirmwareVersion = 0xFF
	FirmwareV2 FirmwareVersion = 0x20
)

func (v FirmwareVersion) String() string {
	switch v {
	case FirmwareV1:
		return "1.0"
	case FirmwareV2:
		return "2.0"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(v))
	}
}

// AskForFirmwareVersion issues the dedicated firmware revision command.
// The result is not cached.
func (s *Si7021) AskForFirmwareVersion(ctx context.Context) (FirmwareVersion, error) {
	buf := make([]byte, 1)
	if err := s.transfer(ctx, cmdFirmwareVersion, buf); err != nil {
		return 0, fmt.Errorf("si7021: firmware version read failed: %w", err)
	}
	return FirmwareVersion(buf[0]), nil
}

// transfer writes cmd and reads len(resp) bytes, using a repeated start when
// the transport supports it.
func (s *Si7021) transfer(ctx context.Context, cmd, resp []byte) error {
	if tx, ok := s.transport.(Transactor); ok {
		if err := tx.TxAddr(ctx, s.config.Address, cmd, resp); err != nil {
			return err
		}
		s.trace(cmd, resp)
		return nil
	}
	if err := s.transport.WriteToAddr(ctx, s.config.Address, cmd); err != nil {
		return fmt.Errorf("command write failed: %w", err)
	}
	if err := s.transport.ReadFromAddr(ctx, s.config.Address, resp); err != nil {
		return fmt.Errorf("response read failed: %w", err)
	}
	s.trace(cmd, resp)
	return nil
}

func (s *Si7021) trace(cmd, resp []byte) {
	s.log.Debug("bus transaction", "cmd", hex.EncodeToString(cmd), "resp", hex.EncodeToString(resp))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
