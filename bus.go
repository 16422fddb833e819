package si7021

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")
var ErrNoDevice = fmt.Errorf("no device acknowledged the address")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is the blocking two-wire transport the driver talks through.
// Any returned error means the operation failed; the driver does not
// distinguish between NACK, bus error or timeout.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Transactor is implemented by transports able to write and then read with a
// repeated start, without releasing the bus in between.
type Transactor interface {
	TxAddr(ctx context.Context, address byte, w, r []byte) error
}
