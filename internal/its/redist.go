package its

// Redistributor is the external collaborator the ITS calls into once a
// translation resolves to a target CPU and LPI. The parent GICv3 owns the
// actual redistributor array; the ITS only ever needs these two narrow
// entry points.
type Redistributor interface {
	// PendLPI marks intid pending on the redistributor serving cpu.
	PendLPI(cpu uint64, intid uint32) error

	// ClearLPI clears intid on the redistributor serving cpu.
	ClearLPI(cpu uint64, intid uint32) error
}

// RedistCall records a single call made to a Redistributor, for tests and
// the demo CLI.
type RedistCall struct {
	Pend  bool
	CPU   uint64
	IntID uint32
}

// RecordingRedistributor is a Redistributor stand-in that records every
// call it receives instead of forwarding it anywhere. It is the collaborator
// used by the package's own tests and by the demo command; a full system
// emulator would instead adapt its real redistributor array to this
// interface.
type RecordingRedistributor struct {
	Calls []RedistCall
}

func (r *RecordingRedistributor) PendLPI(cpu uint64, intid uint32) error {
	r.Calls = append(r.Calls, RedistCall{Pend: true, CPU: cpu, IntID: intid})
	return nil
}

func (r *RecordingRedistributor) ClearLPI(cpu uint64, intid uint32) error {
	r.Calls = append(r.Calls, RedistCall{Pend: false, CPU: cpu, IntID: intid})
	return nil
}
