package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/si7021"
)

var _ si7021.I2CBus = &GobotBus{}

// GobotBus exposes a gobot I2C connector (e.g. the NanoPi NEO adaptor) as a
// driver transport. One generic gobot driver is started per target address.
type GobotBus struct {
	mx        sync.Mutex
	connector i2c.Connector
	busNr     int
	drivers   map[byte]*i2c.GenericDriver
}

func NewGobotBus(connector i2c.Connector, busNr int) *GobotBus {
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		drivers:   make(map[byte]*i2c.GenericDriver),
	}
}

func (b *GobotBus) driver(address byte) (*i2c.GenericDriver, error) {
	if drv, ok := b.drivers[address]; ok {
		return drv, nil
	}
	drv := i2c.NewGenericDriver(b.connector, "si7021", int(address), func(c i2c.Config) {
		c.SetBus(b.busNr)
	})
	if err := drv.Start(); err != nil {
		return nil, fmt.Errorf("start error at %#x: %w", address, err)
	}
	b.drivers[address] = drv
	return drv, nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	drv, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := drv.Write(buffer); err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	return nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	drv, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := drv.Read(buffer); err != nil {
		return fmt.Errorf("read from %x failed: %w", address, err)
	}
	return nil
}

// Release halts every started driver.
func (b *GobotBus) Release(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for addr, drv := range b.drivers {
		if err := drv.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %#x: %w", addr, err))
		}
		delete(b.drivers, addr)
	}
	return errors.Join(errs...)
}
