package si7021test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/si7021"
)

// CheckDevice runs a non-destructive session against whatever answers on bus:
// identification, a measurement, every resolution mode and a heater toggle.
// The user and heater registers are restored when the check ends.
func CheckDevice(t *testing.T, bus si7021.I2CBus, opts ...si7021.Opt) {
	t.Helper()
	ctx := context.Background()

	s, err := si7021.Open(ctx, bus, opts...)
	require.NoError(t, err)
	assert.NotZero(t, s.SerialNumber())
	t.Logf("serial %016X, device id %#x", s.SerialNumber(), s.FirmwareRev())

	user, err := s.AskForRegisterData(ctx, si7021.UserRegister)
	require.NoError(t, err)
	heater, err := s.AskForRegisterData(ctx, si7021.HeaterRegister)
	require.NoError(t, err)
	t.Cleanup(func() {
		ok, err := s.SetRegister(ctx, user, si7021.UserRegister)
		assert.NoError(t, err)
		assert.True(t, ok, "user register restore")
		ok, err = s.SetRegister(ctx, heater, si7021.HeaterRegister)
		assert.NoError(t, err)
		assert.True(t, ok, "heater register restore")
	})

	temp, hum, err := s.Measure(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, temp, float32(-40))
	assert.LessOrEqual(t, temp, float32(125))
	assert.GreaterOrEqual(t, hum, float32(0))
	assert.LessOrEqual(t, hum, float32(100))
	t.Logf("%.2f °C, %.2f %%RH", temp, hum)

	for _, res := range []si7021.Resolution{si7021.RH08T12, si7021.RH10T13, si7021.RH11T11, si7021.RH12T14} {
		ok, err := s.SetResolution(ctx, res)
		require.NoError(t, err, res.String())
		assert.True(t, ok, res.String())
		got, err := s.AskForResolution(ctx)
		require.NoError(t, err)
		assert.Equal(t, res, got)
		_, err = s.AskForTemperature(ctx)
		assert.NoError(t, err, "temperature at %s", res)
	}

	enabled := s.Heater()
	ok, err := s.SetHeater(ctx, !enabled)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := s.AskForHeater(ctx)
	require.NoError(t, err)
	assert.Equal(t, !enabled, got)
}
