package its

import "fmt"

// Sentinel errors for the five error kinds the ITS distinguishes. Each is
// wrapped with call-site context via fmt.Errorf("%w: ...") rather than
// constructed directly, so callers can use errors.Is against the sentinel.
var (
	// ErrInvalidAccess is returned for MMIO accesses of the wrong width or at
	// a reserved offset. The top-level dispatcher downgrades this to a
	// successful, zero-filled read (RAZ/WI) rather than propagating it to
	// the guest.
	ErrInvalidAccess = fmt.Errorf("its: invalid access")

	// ErrInvalidRegisterWrite is returned when the guest writes a read-only
	// register, or a read/write register that is currently locked by
	// CTLR.Enabled.
	ErrInvalidRegisterWrite = fmt.Errorf("its: invalid register write")

	// ErrMalformedDescriptor is returned when a BASER or CBASER write
	// encodes an unsupported page size or table type. The register is
	// cleared to zero and no descriptor is cached.
	ErrMalformedDescriptor = fmt.Errorf("its: malformed descriptor")

	// ErrInvalidCommandOperand is returned when a command queue entry
	// carries an out-of-range DevID, EventID, ICID, pINTID, or RDBase. The
	// command is skipped; the queue still advances.
	ErrInvalidCommandOperand = fmt.Errorf("its: invalid command operand")

	// ErrGuestMemoryFault is returned when the memory adapter fails while
	// walking tables or fetching a command. The command interpreter halts
	// without advancing CREADR.
	ErrGuestMemoryFault = fmt.Errorf("its: guest memory fault")
)
