package si7021

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockI2CBus is a mock implementation of I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockI2CBus) expectWrite(data ...byte) *mock.Call {
	return m.On("WriteToAddr", mock.Anything, byte(DefaultAddress), data).Return(nil).Once()
}

func (m *MockI2CBus) expectRead(data ...byte) *mock.Call {
	return m.On("ReadFromAddr", mock.Anything, byte(DefaultAddress), mock.Anything).Return(data, nil).Once()
}

func newTestSensor(bus I2CBus, opts ...Opt) *Si7021 {
	return New(bus, append([]Opt{WithConversionDelay(0)}, opts...)...)
}

func TestConvertHumidity(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float32
	}{
		{[]byte{0x00, 0x00}, 0.0},
		{[]byte{0xFF, 0xFF}, 100.0},
		{[]byte{0x80, 0x00}, 56.5},
		{[]byte{0x4E, 0x85}, 32.339615},
		{[]byte{0x0C, 0x00}, 0.0},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			raw := uint16(test.given[0])<<8 | uint16(test.given[1])
			assert.InDelta(t, test.expected, ConvertHumidity(raw), 1e-4)
		})
	}
}

func TestConvertHumidity_Clamped(t *testing.T) {
	for raw := 0; raw <= 0xFFFF; raw++ {
		rh := ConvertHumidity(uint16(raw))
		if rh < 0 || rh > 100 {
			t.Fatalf("raw %#x: humidity %f out of range", raw, rh)
		}
	}
}

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float32
	}{
		{[]byte{0x00, 0x00}, -46.85},
		{[]byte{0xFF, 0xFF}, 128.86732},
		{[]byte{0x80, 0x00}, 41.01},
		{[]byte{0x66, 0x66}, 23.436928},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			raw := uint16(test.given[0])<<8 | uint16(test.given[1])
			assert.InDelta(t, test.expected, ConvertTemperature(raw), 1e-3)
		})
	}
}

func TestConvertTemperature_Linear(t *testing.T) {
	for raw := 0; raw <= 0xFFFF; raw += 0x0101 {
		expected := 175.72*float64(raw)/65536 - 46.85
		assert.InDelta(t, expected, ConvertTemperature(uint16(raw)), 1e-3, "raw %#x", raw)
	}
}

func TestResolution_RoundTrip(t *testing.T) {
	for _, res := range []Resolution{RH12T14, RH08T12, RH10T13, RH11T11} {
		t.Run(res.String(), func(t *testing.T) {
			for other := 0; other <= 0xFF; other++ {
				reg, err := encodeResolution(byte(other), res)
				require.NoError(t, err)
				assert.Equal(t, res, decodeResolution(reg))
				assert.Equal(t, byte(other)&^userResMask, reg&^userResMask, "unrelated bits changed")
			}
		})
	}
}

func TestResolution_Decode(t *testing.T) {
	tests := []struct {
		reg      byte
		expected Resolution
	}{
		{0b00111010, RH12T14},
		{0b00111011, RH08T12},
		{0b10111010, RH10T13},
		{0b10111011, RH11T11},
		{0b00000001, RH08T12},
		{0b10000000, RH10T13},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%08b", test.reg), func(t *testing.T) {
			assert.Equal(t, test.expected, decodeResolution(test.reg))
		})
	}
}

func TestResolution_Bits(t *testing.T) {
	assert.Equal(t, 12, RH12T14.HumidityBits())
	assert.Equal(t, 14, RH12T14.TemperatureBits())
	assert.Equal(t, 8, RH08T12.HumidityBits())
	assert.Equal(t, 12, RH08T12.TemperatureBits())
	assert.Equal(t, 10, RH10T13.HumidityBits())
	assert.Equal(t, 13, RH10T13.TemperatureBits())
	assert.Equal(t, 11, RH11T11.HumidityBits())
	assert.Equal(t, 11, RH11T11.TemperatureBits())
}

func TestParseResolution(t *testing.T) {
	res, err := ParseResolution("rh11t11")
	require.NoError(t, err)
	assert.Equal(t, RH11T11, res)
	_, err = ParseResolution("RH16T16")
	assert.ErrorIs(t, err, ErrInvalidResolution)
}

func TestParseHeaterConfig(t *testing.T) {
	tests := []struct {
		given    string
		expected HeaterConfig
		err      bool
	}{
		{"0000", Heater0000, false},
		{"0101", Heater0101, false},
		{"1111", Heater1111, false},
		{"9", Heater1001, false},
		{"15", Heater1111, false},
		{"16", 0, true},
		{"", 0, true},
		{"x1", 0, true},
		{"-1", 0, true},
		{"+3", 0, true},
		{"256", 0, true},
		{"18446744073709551617", 0, true},
	}
	for _, test := range tests {
		t.Run(test.given, func(t *testing.T) {
			cfg, err := ParseHeaterConfig(test.given)
			if test.err {
				assert.ErrorIs(t, err, ErrInvalidHeaterConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, cfg)
		})
	}
}

func TestHeaterConfig_Current(t *testing.T) {
	assert.InDelta(t, 3.09, Heater0000.Current(), 0.01)
	assert.InDelta(t, 27.39, Heater0100.Current(), 0.01)
	assert.InDelta(t, 51.69, Heater1000.Current(), 0.02)
	assert.InDelta(t, 94.20, Heater1111.Current(), 0.01)
}

func TestSi7021_AskForSerialNumber(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xFA, 0x0F)
	bus.expectRead(0x01, 0x23, 0x45, 0x67)
	bus.expectWrite(0xFC, 0xC9)
	bus.expectRead(0x15, 0xAB, 0xCD, 0xEF)

	s := newTestSensor(bus)
	sn, err := s.AskForSerialNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456715ABCDEF), sn)
	assert.Equal(t, sn, s.SerialNumber())
	assert.Equal(t, byte(0x15), s.FirmwareRev())
	bus.AssertExpectations(t)
}

func TestSi7021_AskForFirmwareRev(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xFC, 0xC9)
	bus.expectRead(0x15)

	s := newTestSensor(bus)
	rev, err := s.AskForFirmwareRev(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(0x15), rev)
	assert.Equal(t, byte(0x15), s.FirmwareRev())
	bus.AssertExpectations(t)
}

func TestSi7021_AskForFirmwareVersion(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0x84, 0xB8)
	bus.expectRead(0x20)

	s := newTestSensor(bus)
	v, err := s.AskForFirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FirmwareV2, v)
	assert.Equal(t, "2.0", v.String())
	bus.AssertExpectations(t)
}

func TestSi7021_AskForHumidity(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xF5)
	bus.expectRead(0x80, 0x00, 0x23)

	s := newTestSensor(bus)
	rh, err := s.AskForHumidity(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 56.5, rh, 1e-4)
	assert.Equal(t, rh, s.Humidity())
	bus.AssertExpectations(t)
}

func TestSi7021_AskForHumidity_HoldMaster(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xE5)
	bus.expectRead(0xFF, 0xFF, 0x00)

	s := newTestSensor(bus, WithHoldMaster())
	rh, err := s.AskForHumidity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(100), rh)
	bus.AssertExpectations(t)
}

func TestSi7021_AskForHumidity_Checksum(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xF5)
	bus.expectRead(0x4E, 0x85, 0x6B)
	bus.expectWrite(0xF5)
	bus.expectRead(0x4E, 0x85, 0x00)

	s := newTestSensor(bus, WithChecksum())
	rh, err := s.AskForHumidity(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 32.34, rh, 1e-2)

	_, err = s.AskForHumidity(context.Background())
	assert.ErrorIs(t, err, ErrChecksum)
	assert.InDelta(t, 32.34, s.Humidity(), 1e-2, "cache must keep the last good value")
	bus.AssertExpectations(t)
}

func TestSi7021_AskForTemperature(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xF3)
	bus.expectRead(0x80, 0x00)

	s := newTestSensor(bus)
	temp, err := s.AskForTemperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 41.01, temp, 1e-3)
	assert.Equal(t, temp, s.Temperature())
	bus.AssertExpectations(t)
}

func TestSi7021_AskForTemperaturePrevRH(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xE0)
	bus.expectRead(0x00, 0x00)

	s := newTestSensor(bus)
	temp, err := s.AskForTemperaturePrevRH(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -46.85, temp, 1e-4)
	assert.Equal(t, temp, s.Temperature())
	bus.AssertExpectations(t)
}

func TestSi7021_TransportFailureKeepsCache(t *testing.T) {
	busErr := errors.New("nack")
	bus := new(MockI2CBus)
	bus.expectWrite(0xF3)
	bus.expectRead(0x80, 0x00)
	bus.On("WriteToAddr", mock.Anything, byte(DefaultAddress), []byte{0xF3}).Return(busErr).Once()

	s := newTestSensor(bus)
	_, err := s.AskForTemperature(context.Background())
	require.NoError(t, err)

	temp, err := s.AskForTemperature(context.Background())
	assert.ErrorIs(t, err, busErr)
	assert.Zero(t, temp)
	assert.InDelta(t, 41.01, s.Temperature(), 1e-3)
	bus.AssertExpectations(t)
}

func TestSi7021_ConversionDelayHonoursContext(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xF3)

	s := New(bus)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.AskForTemperature(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	bus.AssertExpectations(t)
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

// registerBus answers every register read with readBack.
type registerBus struct {
	readBack byte
	writes   [][]byte
}

func (b *registerBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.writes = append(b.writes, append([]byte(nil), buffer...))
	return nil
}

func (b *registerBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	buffer[0] = b.readBack
	return nil
}

func (b *registerBus) Release(ctx context.Context) error {
	return nil
}

func TestSi7021_SetRegister_AllValues(t *testing.T) {
	for _, readBack := range []byte{0x00, 0x3A, 0xFF} {
		bus := &registerBus{readBack: readBack}
		s := newTestSensor(bus)
		for v := 0; v <= 0xFF; v++ {
			ok, err := s.SetRegister(context.Background(), byte(v), UserRegister)
			require.NoError(t, err)
			assert.Equal(t, byte(v) == readBack, ok, "value %#x read back %#x", v, readBack)
		}
	}
}

func TestSi7021_SetRegister(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0x51, 0x05)
	bus.expectWrite(0x11)
	bus.expectRead(0x05)

	s := newTestSensor(bus)
	ok, err := s.SetRegister(context.Background(), 0x05, HeaterRegister)
	require.NoError(t, err)
	assert.True(t, ok)
	bus.AssertExpectations(t)
}

func TestSi7021_SetRegister_WriteFailure(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(DefaultAddress), []byte{0xE6, 0x3A}).Return(errors.New("timeout")).Once()

	s := newTestSensor(bus)
	ok, err := s.SetRegister(context.Background(), 0x3A, UserRegister)
	assert.Error(t, err)
	assert.False(t, ok)
	bus.AssertExpectations(t)
}

func TestSi7021_SetRegister_InvalidRegister(t *testing.T) {
	s := newTestSensor(new(MockI2CBus))
	_, err := s.SetRegister(context.Background(), 0x00, Register(7))
	assert.ErrorIs(t, err, ErrInvalidRegister)
}

func TestSi7021_ResetRegister(t *testing.T) {
	bus := &registerBus{readBack: 0x3A}
	s := newTestSensor(bus)

	ok, err := s.ResetRegister(context.Background(), UserRegister)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{0xE6, 0x3A}, bus.writes[0])

	ok, err = s.ResetRegister(context.Background(), HeaterRegister)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []byte{0x51, 0x00}, bus.writes[2])
}

func TestSi7021_SetHeater_NoOp(t *testing.T) {
	bus := new(MockI2CBus)
	s := newTestSensor(bus)

	ok, err := s.SetHeater(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, ok)
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestSi7021_SetHeater_On(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3A)
	bus.expectWrite(0xE6, 0x3E)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3E)

	s := newTestSensor(bus)
	ok, err := s.SetHeater(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Heater())
	bus.AssertExpectations(t)
	bus.AssertNumberOfCalls(t, "WriteToAddr", 3)
	bus.AssertNumberOfCalls(t, "ReadFromAddr", 2)
}

func TestSi7021_SetHeater_OffClearsBit(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xE7)
	bus.expectRead(0xBF)
	bus.expectWrite(0xE6, 0xBB)
	bus.expectWrite(0xE7)
	bus.expectRead(0xBB)

	s := newTestSensor(bus)
	s.state.HeaterEnabled = true
	ok, err := s.SetHeater(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, s.Heater())
	bus.AssertExpectations(t)
}

func TestSi7021_SetHeater_VerificationFailure(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3A)
	bus.expectWrite(0xE6, 0x3E)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3A)

	s := newTestSensor(bus)
	ok, err := s.SetHeater(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.Heater())
	bus.AssertExpectations(t)
}

func TestSi7021_AskForHeater(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3E)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3A)

	s := newTestSensor(bus)
	on, err := s.AskForHeater(context.Background())
	require.NoError(t, err)
	assert.True(t, on)
	on, err = s.AskForHeater(context.Background())
	require.NoError(t, err)
	assert.False(t, on)
	bus.AssertExpectations(t)
}

func TestSi7021_SetResolution_PreservesHeaterBit(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xE7)
	bus.expectRead(0b10111111)
	bus.expectWrite(0xE6, 0b00111110)
	bus.expectWrite(0xE7)
	bus.expectRead(0b00111110)

	s := newTestSensor(bus)
	s.state.Resolution = RH11T11
	ok, err := s.SetResolution(context.Background(), RH12T14)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, RH12T14, s.Resolution())
	bus.AssertExpectations(t)
}

func TestSi7021_SetResolution_Invalid(t *testing.T) {
	bus := new(MockI2CBus)
	s := newTestSensor(bus)
	_, err := s.SetResolution(context.Background(), Resolution(9))
	assert.ErrorIs(t, err, ErrInvalidResolution)
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestSi7021_HeaterConfig(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0x11)
	bus.expectRead(0xF0)
	bus.expectWrite(0x51, 0xF9)
	bus.expectWrite(0x11)
	bus.expectRead(0xF9)
	bus.expectWrite(0x11)
	bus.expectRead(0xF9)

	s := newTestSensor(bus)
	ok, err := s.SetHeaterConfig(context.Background(), Heater1001)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Heater1001, s.HeaterConfig())

	cfg, err := s.AskForHeaterConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Heater1001, cfg)
	bus.AssertExpectations(t)

	_, err = s.SetHeaterConfig(context.Background(), HeaterConfig(0x10))
	assert.ErrorIs(t, err, ErrInvalidHeaterConfig)
}

func TestSi7021_Open_AllQueriesFail(t *testing.T) {
	busErr := errors.New("bus error")
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, mock.Anything, mock.Anything).Return(busErr)

	s, err := Open(context.Background(), bus, WithConversionDelay(0))
	require.NotNil(t, s)
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, State{}, s.State())
	bus.AssertNumberOfCalls(t, "WriteToAddr", 7)
}

func TestSi7021_Open_QueryOrder(t *testing.T) {
	bus := new(MockI2CBus)
	bus.expectWrite(0xFA, 0x0F)
	bus.expectRead(0x00, 0x00, 0x00, 0x01)
	bus.expectWrite(0xFC, 0xC9)
	bus.expectRead(0x15, 0x00, 0x00, 0x02)
	bus.expectWrite(0xFC, 0xC9)
	bus.expectRead(0x15)
	bus.expectWrite(0xF3)
	bus.expectRead(0x66, 0x66)
	bus.expectWrite(0xF5)
	bus.expectRead(0x80, 0x00, 0x23)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3E)
	bus.expectWrite(0xE7)
	bus.expectRead(0x3B)
	bus.expectWrite(0x11)
	bus.expectRead(0x04)

	s, err := Open(context.Background(), bus, WithConversionDelay(0))
	require.NoError(t, err)
	bus.AssertExpectations(t)

	var writes [][]byte
	for _, call := range bus.Calls {
		if call.Method == "WriteToAddr" {
			writes = append(writes, call.Arguments.Get(2).([]byte))
		}
	}
	assert.Equal(t, [][]byte{
		{0xFA, 0x0F}, {0xFC, 0xC9}, {0xFC, 0xC9}, {0xF3}, {0xF5}, {0xE7}, {0xE7}, {0x11},
	}, writes)

	state := s.State()
	assert.Equal(t, uint64(0x0000000115000002), state.SerialNumber)
	assert.Equal(t, byte(0x15), state.FirmwareRevision)
	assert.InDelta(t, 23.4369, state.Temperature, 1e-3)
	assert.InDelta(t, 56.5, state.Humidity, 1e-4)
	assert.True(t, state.HeaterEnabled)
	assert.Equal(t, RH08T12, state.Resolution)
	assert.Equal(t, Heater0100, state.HeaterConfig)
}
