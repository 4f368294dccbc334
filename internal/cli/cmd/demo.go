package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/smoynes/gicits/internal/cli"
	"github.com/smoynes/gicits/internal/its"
	"github.com/smoynes/gicits/internal/log"
)

// Demo is a demonstration command.
func Demo() cli.Command {
	return new(demo)
}

type demo struct {
	debug bool
	quiet bool
}

func (demo) Description() string {
	return "run the happy-path translation scenario against an in-memory ITS"
}

func (d demo) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `
demo [ -debug | -quiet ]

Configure a Device Table, Collection Table, and command queue, run the
MAPD/MAPC/MAPTI/INT command sequence, then ring the doorbell, and report the
resulting redistributor calls and the CTLR and TYPER register values.`)

	return err
}

func (d *demo) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)

	fs.BoolVar(&d.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&d.quiet, "quiet", false, "enable quiet output")

	return fs
}

// Addresses and identifiers used by the scenario. Chosen so the device,
// collection, and command queue tables, and the ITT, each land on their own
// page.
const (
	demoDevTableAddr  = 0x1000
	demoCollTableAddr = 0x2000
	demoCmdQAddr      = 0x3000
	demoITTAddr       = 0x4000

	demoDevID   = 5
	demoEventID = 2
	demoICID    = 1
	demoCPU     = 3
	demoPIntID  = 8300
)

func (d demo) Run(ctx context.Context, args []string, out io.Writer, _ *log.Logger) int {
	if d.quiet {
		log.LogLevel.Set(log.Error)
	}

	if d.debug {
		log.LogLevel.Set(log.Debug)
	}

	logger := log.NewFormattedLogger(os.Stdout)
	log.SetDefault(logger)
	log.DefaultLogger = func() *log.Logger { return logger }

	logger.Info("configuring its")

	mem := its.NewFlatMemory(1 << 16)
	redist := &its.RecordingRedistributor{}
	dev := its.New(mem, its.WithRedistributor(redist), its.WithLogger(logger))

	devBaser := its.EncodeBASER(its.TableTypeDevice, its.PageSize4K, 0, 8, false, true, demoDevTableAddr)
	dev.Write(its.RegBASER0, 8, devBaser, 0)

	collBaser := its.EncodeBASER(its.TableTypeCollection, its.PageSize4K, 0, 8, false, true, demoCollTableAddr)
	dev.Write(its.RegBASER0+8, 8, collBaser, 0)

	dev.Write(its.RegCBASER, 8, its.EncodeCBASER(true, demoCmdQAddr), 0)
	dev.Write(its.RegCTLR, 4, its.CTLREnabled, 0)

	cmds := []its.CommandEntry{
		{Opcode: its.CmdMAPD, DevID: demoDevID, Size: 5, ITTAddr: demoITTAddr, Valid: true},
		{Opcode: its.CmdMAPC, ICID: demoICID, RDBase: demoCPU, Valid: true},
		{Opcode: its.CmdMAPTI, DevID: demoDevID, EventID: demoEventID, PIntID: demoPIntID, ICID: demoICID, Valid: true},
		{Opcode: its.CmdINT, DevID: demoDevID, EventID: demoEventID, Valid: true},
	}

	for n, c := range cmds {
		buf := its.EncodeCommandEntry(c)
		if err := mem.WriteBytes(demoCmdQAddr+uint64(n)*32, buf[:]); err != nil {
			logger.Error("writing command queue entry", "n", n, "err", err)
			return 2
		}
	}

	logger.Info("draining command queue", "commands", len(cmds))
	dev.Write(its.RegCWRITER, 8, uint64(len(cmds))<<5, 0)

	logger.Info("ringing doorbell")
	dev.Write(its.RegTranslater, 4, demoEventID, demoDevID)

	fmt.Fprintf(out, "redistributor calls:\n")

	for _, call := range redist.Calls {
		verb := "clear"
		if call.Pend {
			verb = "pend"
		}

		fmt.Fprintf(out, "  %s lpi=%d cpu=%d\n", verb, call.IntID, call.CPU)
	}

	fmt.Fprintf(out, "ctlr=%#x typer=%#x\n", dev.Read(its.RegCTLR, 4), dev.Read(its.RegTYPER, 8))

	logger.Info("demo completed")

	return 0
}
