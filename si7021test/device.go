// Package si7021test provides a register-level Si7021 simulator that can be
// used as a bus by the si7021 driver, without any hardware.
//
// Example usage:
//
//	dev := si7021test.NewDevice()
//	dev.RawTemperature = 0x6666
//	s, err := si7021.Open(ctx, dev, si7021.WithConversionDelay(0))
package si7021test

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/mklimuk/si7021"
)

// Transaction is a single recorded bus operation.
type Transaction struct {
	Write bool
	Addr  byte
	Data  []byte
}

// Device simulates an Si7021. Exported fields can be changed between calls.
type Device struct {
	mx sync.Mutex

	Address byte
	// Serial is the 64-bit electronic ID; its byte 4 is the device ID
	// reported as firmware revision (0x15 for Si7021).
	Serial          uint64
	FirmwareVersion byte
	User            byte
	Heater          byte
	RawHumidity     uint16
	RawTemperature  uint16
	// StuckBits are register bits that ignore writes, so read-back verification fails.
	StuckBits byte
	// Err, when set, is returned by every bus operation.
	Err error

	lastRHTemp uint16
	pending    []byte
	log        []Transaction
}

var _ si7021.I2CBus = &Device{}

func NewDevice() *Device {
	return &Device{
		Address:         si7021.DefaultAddress,
		Serial:          0x1122334415FFB5FF,
		FirmwareVersion: 0x20,
		User:            si7021.DefaultUserRegister,
		Heater:          si7021.DefaultHeaterRegister,
		RawHumidity:     0x8000,
		RawTemperature:  0x6666,
	}
}

func (d *Device) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.record(true, address, buffer)
	if err := d.check(address); err != nil {
		return err
	}
	if len(buffer) == 0 {
		return fmt.Errorf("empty command")
	}
	d.pending = nil
	switch buffer[0] {
	case 0xE5, 0xF5:
		d.lastRHTemp = d.RawTemperature
		d.pending = withCRC(d.RawHumidity)
	case 0xE3, 0xF3:
		d.pending = word(d.RawTemperature)
	case 0xE0:
		d.pending = word(d.lastRHTemp)
	case 0xFE:
		d.User = si7021.DefaultUserRegister
		d.Heater = si7021.DefaultHeaterRegister
	case 0xE7:
		d.pending = []byte{d.User}
	case 0x11:
		d.pending = []byte{d.Heater}
	case 0xE6, 0x51:
		if len(buffer) != 2 {
			return fmt.Errorf("register write needs 2 bytes, got %d", len(buffer))
		}
		reg := &d.User
		if buffer[0] == 0x51 {
			reg = &d.Heater
		}
		*reg = *reg&d.StuckBits | buffer[1]&^d.StuckBits
	case 0xFA:
		d.pending = make([]byte, 4)
		binary.BigEndian.PutUint32(d.pending, uint32(d.Serial>>32))
	case 0xFC:
		d.pending = make([]byte, 4)
		binary.BigEndian.PutUint32(d.pending, uint32(d.Serial))
	case 0x84:
		d.pending = []byte{d.FirmwareVersion}
	default:
		return fmt.Errorf("unknown command %#x", buffer[0])
	}
	return nil
}

func (d *Device) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.check(address); err != nil {
		return err
	}
	if d.pending == nil {
		return fmt.Errorf("no data pending")
	}
	n := copy(buffer, d.pending)
	d.record(false, address, buffer[:n])
	return nil
}

func (d *Device) Release(ctx context.Context) error {
	return nil
}

// Transactions returns a copy of the recorded bus operations.
func (d *Device) Transactions() []Transaction {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]Transaction(nil), d.log...)
}

func (d *Device) ResetLog() {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.log = nil
}

func (d *Device) check(address byte) error {
	if d.Err != nil {
		return d.Err
	}
	if address != d.Address {
		return fmt.Errorf("address %#x: %w", address, si7021.ErrNoDevice)
	}
	return nil
}

func (d *Device) record(write bool, address byte, data []byte) {
	d.log = append(d.log, Transaction{Write: write, Addr: address, Data: append([]byte(nil), data...)})
}

func word(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

func withCRC(v uint16) []byte {
	buf := word(v)
	return append(buf, si7021.CRC8(buf))
}
