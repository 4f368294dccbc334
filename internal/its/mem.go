package its

import "fmt"

// GuestMemory is the sole boundary between the ITS core and the host's
// guest-physical address space. All table walking and command fetching goes
// through this interface; the ITS never assumes anything about how the
// backing memory is implemented or addressed beyond little-endian byte
// order.
type GuestMemory interface {
	// LoadLE reads width bytes (1, 2, 4, or 8) at addr and returns them as
	// a little-endian-decoded value.
	LoadLE(addr uint64, width int) (uint64, error)

	// StoreLE writes the low width bytes of value at addr, little-endian.
	StoreLE(addr uint64, width int, value uint64) error

	// ReadBytes fills buf with len(buf) bytes starting at addr.
	ReadBytes(addr uint64, buf []byte) error

	// WriteBytes writes buf to addr.
	WriteBytes(addr uint64, buf []byte) error
}

// FlatMemory is an in-process GuestMemory backed by a single byte slice,
// addressed starting at zero. It exists for the demo CLI and for tests; a
// full system emulator would instead adapt its own address-space object to
// the GuestMemory interface.
type FlatMemory struct {
	bytes []byte
}

// NewFlatMemory allocates a FlatMemory of the given size.
func NewFlatMemory(size uint64) *FlatMemory {
	return &FlatMemory{bytes: make([]byte, size)}
}

// errOutOfRange is wrapped into ErrGuestMemoryFault when an access falls
// outside the backing buffer.
var errOutOfRange = fmt.Errorf("out of range")

func (m *FlatMemory) bounds(addr uint64, length int) error {
	if length < 0 || addr > uint64(len(m.bytes)) || uint64(length) > uint64(len(m.bytes))-addr {
		return fmt.Errorf("%w: %w: addr=%#x len=%d", ErrGuestMemoryFault, errOutOfRange, addr, length)
	}

	return nil
}

func (m *FlatMemory) LoadLE(addr uint64, width int) (uint64, error) {
	if err := m.bounds(addr, width); err != nil {
		return 0, err
	}

	var value uint64

	for i := 0; i < width; i++ {
		value |= uint64(m.bytes[int(addr)+i]) << (8 * i)
	}

	return value, nil
}

func (m *FlatMemory) StoreLE(addr uint64, width int, value uint64) error {
	if err := m.bounds(addr, width); err != nil {
		return err
	}

	for i := 0; i < width; i++ {
		m.bytes[int(addr)+i] = byte(value >> (8 * i))
	}

	return nil
}

func (m *FlatMemory) ReadBytes(addr uint64, buf []byte) error {
	if err := m.bounds(addr, len(buf)); err != nil {
		return err
	}

	copy(buf, m.bytes[addr:addr+uint64(len(buf))])

	return nil
}

func (m *FlatMemory) WriteBytes(addr uint64, buf []byte) error {
	if err := m.bounds(addr, len(buf)); err != nil {
		return err
	}

	copy(m.bytes[addr:addr+uint64(len(buf))], buf)

	return nil
}

// Bytes exposes the backing buffer directly. internal/itsimage does not use
// it; snapshots go through ReadBytes and WriteBytes.
func (m *FlatMemory) Bytes() []byte { return m.bytes }
