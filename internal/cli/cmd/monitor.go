package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/smoynes/gicits/internal/cli"
	"github.com/smoynes/gicits/internal/its"
	"github.com/smoynes/gicits/internal/itsimage"
	"github.com/smoynes/gicits/internal/log"
	"github.com/smoynes/gicits/internal/tty"
)

// Monitor is an interactive command.
func Monitor() cli.Command {
	return new(monitor)
}

type monitor struct {
	memSize uint64
}

func (monitor) Description() string {
	return "single-step an in-memory ITS from an interactive console"
}

func (monitor) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `
monitor [ -mem bytes ]

Start an interactive session over a fresh ITS backed by an in-memory guest.

Commands:
  read   <offset> [width]          read a register
  write  <offset> <value> [width]  write a register
  queue  <opcode> <devid> <eventid> <icid> <rdbase> <pintid> <ittaddr> <valid>
                                    append a command queue entry and drain it
  doorbell <devid> <eventid>       write the translation doorbell
  dump   <addr> <length>           print a guest memory range as itsimage text
  load   <rec>[;<rec>...]          load itsimage records (';'-separated) into guest memory
  reset                            reset the ITS to its power-on state
  calls                            list recorded redistributor calls
  quit                             leave the monitor

Numeric arguments accept Go integer literals, so hex like 0x1000 works.`)

	return err
}

func (m *monitor) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	fs.Uint64Var(&m.memSize, "mem", 1<<20, "guest memory size in bytes")

	return fs
}

func (m monitor) Run(ctx context.Context, args []string, out io.Writer, logger *log.Logger) int {
	console, err := tty.NewConsole(os.Stdin, out, "its> ")
	if errors.Is(err, tty.ErrNoTTY) {
		logger.Warn("stdin is not a terminal, falling back to unprompted scripted input")

		return m.runScripted(args, out, logger)
	} else if err != nil {
		logger.Error("console", "err", err)
		return 1
	}

	defer func() { _ = console.Restore() }()

	mem := its.NewFlatMemory(m.memSize)
	redist := &its.RecordingRedistributor{}
	dev := its.New(mem, its.WithRedistributor(redist), its.WithLogger(logger))

	w := console.Writer()

	for {
		line, err := console.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error("readline", "err", err)
			}

			return 0
		}

		if done := m.dispatch(w, dev, mem, redist, line); done {
			return 0
		}
	}
}

// runScripted reads commands from args, one per element, for use in tests
// and scripted (non-interactive) invocations.
func (m monitor) runScripted(args []string, out io.Writer, logger *log.Logger) int {
	mem := its.NewFlatMemory(m.memSize)
	redist := &its.RecordingRedistributor{}
	dev := its.New(mem, its.WithRedistributor(redist), its.WithLogger(logger))

	for _, line := range args {
		if m.dispatch(out, dev, mem, redist, line) {
			break
		}
	}

	return 0
}

func (m monitor) dispatch(out io.Writer, dev *its.ITS, mem *its.FlatMemory, redist *its.RecordingRedistributor, line string) (done bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "reset":
		dev.Reset()
		fmt.Fprintln(out, "ok")

	case "read":
		m.cmdRead(out, dev, fields[1:])

	case "write":
		m.cmdWrite(out, dev, fields[1:])

	case "queue":
		m.cmdQueue(out, dev, mem, fields[1:])

	case "doorbell":
		m.cmdDoorbell(out, dev, fields[1:])

	case "dump":
		m.cmdDump(out, mem, fields[1:])

	case "load":
		m.cmdLoad(out, mem, strings.TrimPrefix(line, fields[0]))

	case "calls":
		for _, call := range redist.Calls {
			verb := "clear"
			if call.Pend {
				verb = "pend"
			}

			fmt.Fprintf(out, "%s lpi=%d cpu=%d\n", verb, call.IntID, call.CPU)
		}

	default:
		fmt.Fprintf(out, "unrecognized command: %s\n", fields[0])
	}

	return false
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func (monitor) cmdRead(out io.Writer, dev *its.ITS, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(out, "usage: read <offset> [width]")
		return
	}

	offset, err := parseUint(args[0])
	if err != nil {
		fmt.Fprintf(out, "offset: %s\n", err)
		return
	}

	width := 4
	if len(args) > 1 {
		w, err := parseUint(args[1])
		if err != nil {
			fmt.Fprintf(out, "width: %s\n", err)
			return
		}

		width = int(w)
	}

	fmt.Fprintf(out, "%#x\n", dev.Read(offset, width))
}

func (monitor) cmdWrite(out io.Writer, dev *its.ITS, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(out, "usage: write <offset> <value> [width]")
		return
	}

	offset, err := parseUint(args[0])
	if err != nil {
		fmt.Fprintf(out, "offset: %s\n", err)
		return
	}

	value, err := parseUint(args[1])
	if err != nil {
		fmt.Fprintf(out, "value: %s\n", err)
		return
	}

	width := 4
	if len(args) > 2 {
		w, err := parseUint(args[2])
		if err != nil {
			fmt.Fprintf(out, "width: %s\n", err)
			return
		}

		width = int(w)
	}

	dev.Write(offset, width, value, 0)
	fmt.Fprintln(out, "ok")
}

func (monitor) cmdQueue(out io.Writer, dev *its.ITS, mem *its.FlatMemory, args []string) {
	if len(args) != 8 {
		fmt.Fprintln(out, "usage: queue <opcode> <devid> <eventid> <icid> <rdbase> <pintid> <ittaddr> <valid>")
		return
	}

	vals := make([]uint64, 7)

	for i := 0; i < 7; i++ {
		v, err := parseUint(args[i])
		if err != nil {
			fmt.Fprintf(out, "argument %d: %s\n", i, err)
			return
		}

		vals[i] = v
	}

	valid := args[7] == "1" || args[7] == "true"

	entry := its.CommandEntry{
		Opcode:  uint8(vals[0]),
		DevID:   uint32(vals[1]),
		EventID: uint32(vals[2]),
		ICID:    uint16(vals[3]),
		RDBase:  vals[4],
		PIntID:  uint32(vals[5]),
		ITTAddr: vals[6],
		Valid:   valid,
	}

	wr := dev.Read(its.RegCWRITER, 8)
	base := dev.Read(its.RegCBASER, 8) & 0x000f_ffff_ffff_f000 // CBASER bits 51:12
	addr := base + wr                                          // CWRITER already carries the byte offset into the queue

	buf := its.EncodeCommandEntry(entry)
	if err := mem.WriteBytes(addr, buf[:]); err != nil {
		fmt.Fprintf(out, "write command: %s\n", err)
		return
	}

	dev.Write(its.RegCWRITER, 8, wr+32, 0)
	fmt.Fprintln(out, "ok")
}

func (monitor) cmdDoorbell(out io.Writer, dev *its.ITS, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(out, "usage: doorbell <devid> <eventid>")
		return
	}

	devid, err := parseUint(args[0])
	if err != nil {
		fmt.Fprintf(out, "devid: %s\n", err)
		return
	}

	eventid, err := parseUint(args[1])
	if err != nil {
		fmt.Fprintf(out, "eventid: %s\n", err)
		return
	}

	dev.Write(its.RegTranslater, 4, eventid, devid)
	fmt.Fprintln(out, "ok")
}

func (monitor) cmdLoad(out io.Writer, mem *its.FlatMemory, rest string) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		fmt.Fprintln(out, "usage: load <rec>[;<rec>...]")
		return
	}

	recs := strings.Split(rest, ";")

	var text strings.Builder

	for _, r := range recs {
		text.WriteString(strings.TrimSpace(r))
		text.WriteByte('\n')
	}

	text.WriteString(":000000000001ff\n")

	var img itsimage.Image
	if err := img.UnmarshalText([]byte(text.String())); err != nil {
		fmt.Fprintf(out, "load: %s\n", err)
		return
	}

	if err := img.LoadInto(mem); err != nil {
		fmt.Fprintf(out, "load: %s\n", err)
		return
	}

	fmt.Fprintf(out, "loaded %d region(s)\n", len(img.Regions))
}

func (monitor) cmdDump(out io.Writer, mem *its.FlatMemory, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(out, "usage: dump <addr> <length>")
		return
	}

	addr, err := parseUint(args[0])
	if err != nil {
		fmt.Fprintf(out, "addr: %s\n", err)
		return
	}

	length, err := parseUint(args[1])
	if err != nil {
		fmt.Fprintf(out, "length: %s\n", err)
		return
	}

	img, err := itsimage.DumpFrom(mem, [][2]uint64{{addr, length}})
	if err != nil {
		fmt.Fprintf(out, "dump: %s\n", err)
		return
	}

	text, err := img.MarshalText()
	if err != nil {
		fmt.Fprintf(out, "marshal: %s\n", err)
		return
	}

	out.Write(text)
}
