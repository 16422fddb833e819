package si7021

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command set (datasheet table 11).
const (
	cmdMeasureRHHold     byte = 0xE5
	cmdMeasureRHNoHold   byte = 0xF5
	cmdMeasureTempHold   byte = 0xE3
	cmdMeasureTempNoHold byte = 0xF3
	cmdTempFromPrevRH    byte = 0xE0
	cmdReset             byte = 0xFE

	cmdWriteUser   byte = 0xE6
	cmdReadUser    byte = 0xE7
	cmdWriteHeater byte = 0x51
	cmdReadHeater  byte = 0x11
)

var (
	cmdSerialFirstAccess  = []byte{0xFA, 0x0F}
	cmdSerialSecondAccess = []byte{0xFC, 0xC9}
	cmdFirmwareVersion    = []byte{0x84, 0xB8}
)

// User register bits.
const (
	userRes1      byte = 0b10000000
	userRes0      byte = 0b00000001
	userResMask        = userRes1 | userRes0
	userHeaterBit byte = 0b00000100

	heaterLevelMask byte = 0b00001111
)

// Power-on register values.
const (
	DefaultUserRegister   byte = 0b00111010
	DefaultHeaterRegister byte = 0b00000000
)

// resetTime is the maximum power-up time after a soft reset.
const resetTime = 15 * time.Millisecond

var ErrInvalidRegister = errors.New("si7021: invalid register")
var ErrInvalidResolution = errors.New("si7021: invalid resolution")
var ErrInvalidHeaterConfig = errors.New("si7021: invalid heater configuration")

type Register byte

const (
	HeaterRegister Register = iota
	UserRegister
)

func (r Register) String() string {
	switch r {
	case HeaterRegister:
		return "heater"
	case UserRegister:
		return "user"
	default:
		return fmt.Sprintf("Register(%d)", byte(r))
	}
}

func ParseRegister(s string) (Register, error) {
	switch strings.ToLower(s) {
	case "heater", "hcr":
		return HeaterRegister, nil
	case "user", "ur1":
		return UserRegister, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRegister, s)
}

func (r Register) commands() (read, write byte, err error) {
	switch r {
	case HeaterRegister:
		return cmdReadHeater, cmdWriteHeater, nil
	case UserRegister:
		return cmdReadUser, cmdWriteUser, nil
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrInvalidRegister, byte(r))
}

// Resolution is the measurement precision pairing held in user register
// bits RES1 (bit 7) and RES0 (bit 0).
type Resolution byte

const (
	RH12T14 Resolution = iota
	RH08T12
	RH10T13
	RH11T11
)

var resolutionNames = [...]string{"RH12T14", "RH08T12", "RH10T13", "RH11T11"}

func (r Resolution) String() string {
	if int(r) < len(resolutionNames) {
		return resolutionNames[r]
	}
	return fmt.Sprintf("Resolution(%d)", byte(r))
}

func (r Resolution) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func ParseResolution(s string) (Resolution, error) {
	for i, name := range resolutionNames {
		if strings.EqualFold(s, name) {
			return Resolution(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
}

func (r Resolution) HumidityBits() int {
	return [...]int{12, 8, 10, 11}[r&0x03]
}

func (r Resolution) TemperatureBits() int {
	return [...]int{14, 12, 13, 11}[r&0x03]
}

// bits returns the RES1/RES0 pattern of the user register.
func (r Resolution) bits() (byte, error) {
	switch r {
	case RH12T14:
		return 0, nil
	case RH08T12:
		return userRes0, nil
	case RH10T13:
		return userRes1, nil
	case RH11T11:
		return userRes1 | userRes0, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidResolution, byte(r))
}

func decodeResolution(reg byte) Resolution {
	res1 := reg&userRes1 != 0
	res0 := reg&userRes0 != 0
	switch {
	case res1 && res0:
		return RH11T11
	case res1:
		return RH10T13
	case res0:
		return RH08T12
	default:
		return RH12T14
	}
}

// encodeResolution replaces the resolution bits of reg, keeping every other bit.
func encodeResolution(reg byte, r Resolution) (byte, error) {
	pattern, err := r.bits()
	if err != nil {
		return 0, err
	}
	return reg&^userResMask | pattern, nil
}

// conversionTime returns maximum conversion times for humidity and temperature.
func (r Resolution) conversionTime() (rh, temp time.Duration) {
	switch r {
	case RH08T12:
		return 3100 * time.Microsecond, 3800 * time.Microsecond
	case RH10T13:
		return 4500 * time.Microsecond, 6200 * time.Microsecond
	case RH11T11:
		return 7 * time.Millisecond, 2400 * time.Microsecond
	default:
		return 12 * time.Millisecond, 10800 * time.Microsecond
	}
}

// HeaterConfig is the heater drive current level, bits 3:0 of the heater
// control register.
type HeaterConfig byte

const (
	Heater0000 HeaterConfig = iota
	Heater0001
	Heater0010
	Heater0011
	Heater0100
	Heater0101
	Heater0110
	Heater0111
	Heater1000
	Heater1001
	Heater1010
	Heater1011
	Heater1100
	Heater1101
	Heater1110
	Heater1111
)

func (h HeaterConfig) String() string {
	return fmt.Sprintf("%04b", byte(h))
}

func (h HeaterConfig) MarshalYAML() (interface{}, error) {
	return h.String(), nil
}

// Current returns the typical heater current in mA at VDD = 3.3 V.
func (h HeaterConfig) Current() float32 {
	return 3.09 + 6.074*float32(h&HeaterConfig(heaterLevelMask))
}

func (h HeaterConfig) valid() bool {
	return byte(h)&^heaterLevelMask == 0
}

// ParseHeaterConfig accepts a 4-digit binary pattern ("0101") or a decimal
// level between 0 and 15.
func ParseHeaterConfig(s string) (HeaterConfig, error) {
	base := 10
	if len(s) == 4 && strings.Trim(s, "01") == "" {
		base = 2
	}
	v, err := strconv.ParseUint(s, base, 8)
	if err != nil || v > uint64(Heater1111) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHeaterConfig, s)
	}
	return HeaterConfig(v), nil
}

// AskForRegisterData reads the raw content of reg. The result is not cached.
func (s *Si7021) AskForRegisterData(ctx context.Context, reg Register) (byte, error) {
	read, _, err := reg.commands()
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if err := s.transfer(ctx, []byte{read}, buf); err != nil {
		return 0, fmt.Errorf("si7021: read %s register failed: %w", reg, err)
	}
	return buf[0], nil
}

// SetRegister writes value into reg and reads it back. The boolean reports
// whether the read-back matched; transport failures are returned as errors.
func (s *Si7021) SetRegister(ctx context.Context, value byte, reg Register) (bool, error) {
	_, write, err := reg.commands()
	if err != nil {
		return false, err
	}
	if err := s.transport.WriteToAddr(ctx, s.config.Address, []byte{write, value}); err != nil {
		return false, fmt.Errorf("si7021: write %s register failed: %w", reg, err)
	}
	got, err := s.AskForRegisterData(ctx, reg)
	if err != nil {
		return false, err
	}
	if got != value {
		s.log.Debug("register verification mismatch", "register", reg, "written", fmt.Sprintf("%#08b", value), "read", fmt.Sprintf("%#08b", got))
		return false, nil
	}
	return true, nil
}

// ResetRegister restores the power-on value of reg.
func (s *Si7021) ResetRegister(ctx context.Context, reg Register) (bool, error) {
	switch reg {
	case HeaterRegister:
		return s.SetRegister(ctx, DefaultHeaterRegister, HeaterRegister)
	case UserRegister:
		return s.SetRegister(ctx, DefaultUserRegister, UserRegister)
	}
	return false, fmt.Errorf("%w: %d", ErrInvalidRegister, byte(reg))
}

func (s *Si7021) AskForResolution(ctx context.Context) (Resolution, error) {
	reg, err := s.AskForRegisterData(ctx, UserRegister)
	if err != nil {
		return s.state.Resolution, err
	}
	s.state.Resolution = decodeResolution(reg)
	return s.state.Resolution, nil
}

// SetResolution changes the resolution bits of the user register. The cached
// resolution follows only a verified write.
func (s *Si7021) SetResolution(ctx context.Context, res Resolution) (bool, error) {
	if _, err := res.bits(); err != nil {
		return false, err
	}
	current, err := s.AskForRegisterData(ctx, UserRegister)
	if err != nil {
		return false, err
	}
	next, _ := encodeResolution(current, res)
	ok, err := s.SetRegister(ctx, next, UserRegister)
	if ok {
		s.state.Resolution = res
	}
	return ok, err
}

func (s *Si7021) Resolution() Resolution {
	return s.state.Resolution
}

func (s *Si7021) AskForHeater(ctx context.Context) (bool, error) {
	reg, err := s.AskForRegisterData(ctx, UserRegister)
	if err != nil {
		return s.state.HeaterEnabled, err
	}
	s.state.HeaterEnabled = reg&userHeaterBit != 0
	return s.state.HeaterEnabled, nil
}

// SetHeater switches the on-chip heater. Asking for the state already cached
// is a no-op returning false without touching the bus.
func (s *Si7021) SetHeater(ctx context.Context, enable bool) (bool, error) {
	if enable == s.state.HeaterEnabled {
		return false, nil
	}
	current, err := s.AskForRegisterData(ctx, UserRegister)
	if err != nil {
		return false, err
	}
	next := current &^ userHeaterBit
	if enable {
		next |= userHeaterBit
	}
	ok, err := s.SetRegister(ctx, next, UserRegister)
	if ok {
		s.state.HeaterEnabled = enable
	}
	return ok, err
}

func (s *Si7021) Heater() bool {
	return s.state.HeaterEnabled
}

func (s *Si7021) AskForHeaterConfig(ctx context.Context) (HeaterConfig, error) {
	reg, err := s.AskForRegisterData(ctx, HeaterRegister)
	if err != nil {
		return s.state.HeaterConfig, err
	}
	s.state.HeaterConfig = HeaterConfig(reg & heaterLevelMask)
	return s.state.HeaterConfig, nil
}

// SetHeaterConfig writes the heater current level, preserving the reserved
// upper bits of the heater control register.
func (s *Si7021) SetHeaterConfig(ctx context.Context, cfg HeaterConfig) (bool, error) {
	if !cfg.valid() {
		return false, fmt.Errorf("%w: %d", ErrInvalidHeaterConfig, byte(cfg))
	}
	current, err := s.AskForRegisterData(ctx, HeaterRegister)
	if err != nil {
		return false, err
	}
	ok, err := s.SetRegister(ctx, current&^heaterLevelMask|byte(cfg), HeaterRegister)
	if ok {
		s.state.HeaterConfig = cfg
	}
	return ok, err
}

func (s *Si7021) HeaterConfig() HeaterConfig {
	return s.state.HeaterConfig
}

// Reset issues a soft reset and waits for the device to power up. Registers
// return to their power-on values, and so do the cached configuration fields.
func (s *Si7021) Reset(ctx context.Context) error {
	if err := s.transport.WriteToAddr(ctx, s.config.Address, []byte{cmdReset}); err != nil {
		return fmt.Errorf("si7021: reset failed: %w", err)
	}
	if err := sleep(ctx, resetTime); err != nil {
		return err
	}
	s.state.Resolution = decodeResolution(DefaultUserRegister)
	s.state.HeaterEnabled = DefaultUserRegister&userHeaterBit != 0
	s.state.HeaterConfig = HeaterConfig(DefaultHeaterRegister & heaterLevelMask)
	return nil
}
