// Package its implements the emulation core of a GICv3 Interrupt Translation
// Service: the register file, command queue interpreter, and translation
// pipeline that turn (DeviceID, EventID) doorbell writes into LPI delivery
// on a target redistributor.
package its

import (
	"fmt"
	"sync"

	"github.com/smoynes/gicits/internal/log"
)

// ITS is an instance of the Interrupt Translation Service. All mutable
// state -- the register file and the derived table descriptors -- lives on
// the instance; the source this core was adapted from kept its descriptor
// caches on the class object, which this rewrite treats as a modeling bug
// (see SPEC_FULL.md, Design Notes) rather than repeats.
type ITS struct {
	mu sync.Mutex

	regs registers
	topo Topology

	mem    GuestMemory
	redist Redistributor
	log    *log.Logger

	devDesc  tableDesc
	collDesc tableDesc
	cmdQ     cmdQDesc
}

// OptionFn configures an ITS at construction time, following the
// functional-options idiom used throughout this stack's constructors.
type OptionFn func(*ITS)

// WithTopology overrides the default topology (num_cpu, IDBITS, DEVBITS,
// CIL, CIDBITS, PTA).
func WithTopology(t Topology) OptionFn {
	return func(i *ITS) { i.topo = t }
}

// WithRedistributor configures the redistributor collaborator. If omitted,
// New installs a RecordingRedistributor.
func WithRedistributor(r Redistributor) OptionFn {
	return func(i *ITS) { i.redist = r }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) OptionFn {
	return func(i *ITS) { i.log = l }
}

// New creates an ITS over the given guest memory and applies opts, then
// resets it to its architectural power-on state. mem must not be nil; a nil
// memory adapter is a programmer error, not a guest-triggerable fault, so
// New panics rather than returning an error.
func New(mem GuestMemory, opts ...OptionFn) *ITS {
	if mem == nil {
		panic("its: nil guest memory")
	}

	i := &ITS{
		mem:    mem,
		topo:   DefaultTopology(),
		redist: &RecordingRedistributor{},
		log:    log.DefaultLogger(),
	}

	for _, opt := range opts {
		opt(i)
	}

	i.Reset()

	return i
}

// Reset returns the ITS to its architectural power-on state: TYPER and IIDR
// published, CTLR quiescent, BASER[0]/BASER[1] preset as Device/Collection
// tables with 64K pages and 16-byte entries, all other state zeroed (§4.7,
// §6.4).
func (i *ITS) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.regs = registers{}
	i.regs.typer = i.topo.typerResetValue()
	i.regs.iidr = 0
	i.regs.ctlr = ctlrQuiescent
	i.regs.baser[0] = baserReset(baserTypeDevice, 16)
	i.regs.baser[1] = baserReset(baserTypeCollection, 16)

	i.devDesc = tableDesc{}
	i.collDesc = tableDesc{}
	i.cmdQ = cmdQDesc{}

	i.log.Info("its: reset", "typer", fmt.Sprintf("%#016x", i.regs.typer))
}

func (i *ITS) enabled() bool {
	return i.regs.ctlr&ctlrEnabled != 0
}
