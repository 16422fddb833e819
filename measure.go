package si7021

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"
)

var ErrChecksum = fmt.Errorf("si7021: checksum mismatch")

// ConvertHumidity applies RH = 125*raw/65536 - 6, clamped to [0, 100].
func ConvertHumidity(raw uint16) float32 {
	rh := 125*float32(raw)/65536 - 6
	if rh < 0 {
		return 0
	}
	if rh > 100 {
		return 100
	}
	return rh
}

// ConvertTemperature applies T = 175.72*raw/65536 - 46.85. Not clamped.
func ConvertTemperature(raw uint16) float32 {
	return 175.72*float32(raw)/65536 - 46.85
}

// AskForHumidity triggers a humidity conversion and caches the result.
func (s *Si7021) AskForHumidity(ctx context.Context) (float32, error) {
	cmd := cmdMeasureRHNoHold
	if s.config.HoldMaster {
		cmd = cmdMeasureRHHold
	}
	rhTime, tTime := s.state.Resolution.conversionTime()
	// a humidity conversion is followed by a temperature conversion
	resp := make([]byte, 3)
	if err := s.measure(ctx, cmd, rhTime+tTime, resp); err != nil {
		return 0, fmt.Errorf("si7021: humidity measurement failed: %w", err)
	}
	if s.config.Checksum && !CheckCRC(resp[:2], resp[2]) {
		return 0, fmt.Errorf("%w: expected %#x, got %#x", ErrChecksum, CRC8(resp[:2]), resp[2])
	}
	s.state.Humidity = ConvertHumidity(binary.BigEndian.Uint16(resp))
	return s.state.Humidity, nil
}

func (s *Si7021) Humidity() float32 {
	return s.state.Humidity
}

// AskForTemperature triggers a temperature conversion and caches the result.
func (s *Si7021) AskForTemperature(ctx context.Context) (float32, error) {
	cmd := cmdMeasureTempNoHold
	if s.config.HoldMaster {
		cmd = cmdMeasureTempHold
	}
	_, tTime := s.state.Resolution.conversionTime()
	resp := make([]byte, 2)
	if err := s.measure(ctx, cmd, tTime, resp); err != nil {
		return 0, fmt.Errorf("si7021: temperature measurement failed: %w", err)
	}
	s.state.Temperature = ConvertTemperature(binary.BigEndian.Uint16(resp))
	return s.state.Temperature, nil
}

// AskForTemperaturePrevRH reads the temperature converted during the last
// humidity measurement. No new conversion is started.
func (s *Si7021) AskForTemperaturePrevRH(ctx context.Context) (float32, error) {
	resp := make([]byte, 2)
	if err := s.transfer(ctx, []byte{cmdTempFromPrevRH}, resp); err != nil {
		return 0, fmt.Errorf("si7021: temperature from previous RH read failed: %w", err)
	}
	s.state.Temperature = ConvertTemperature(binary.BigEndian.Uint16(resp))
	return s.state.Temperature, nil
}

func (s *Si7021) Temperature() float32 {
	return s.state.Temperature
}

// Measure reads humidity and the temperature of the same conversion.
func (s *Si7021) Measure(ctx context.Context) (float32, float32, error) {
	hum, err := s.AskForHumidity(ctx)
	if err != nil {
		return 0, 0, err
	}
	temp, err := s.AskForTemperaturePrevRH(ctx)
	if err != nil {
		return 0, 0, err
	}
	return temp, hum, nil
}

func (s *Si7021) measure(ctx context.Context, cmd byte, conversion time.Duration, resp []byte) error {
	if s.config.HoldMaster {
		return s.transfer(ctx, []byte{cmd}, resp)
	}
	if err := s.transport.WriteToAddr(ctx, s.config.Address, []byte{cmd}); err != nil {
		return fmt.Errorf("command write failed: %w", err)
	}
	delay := s.config.ConversionDelay
	if delay == DelayAuto {
		delay = conversion
	}
	if err := sleep(ctx, delay); err != nil {
		return err
	}
	if err := s.transport.ReadFromAddr(ctx, s.config.Address, resp); err != nil {
		return fmt.Errorf("response read failed: %w", err)
	}
	s.trace([]byte{cmd}, resp)
	return nil
}
