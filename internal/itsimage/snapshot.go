package itsimage

import "github.com/smoynes/gicits/internal/its"

// LoadInto writes every region of img into mem, in order. It is the
// counterpart to DumpFrom, used by the monitor command's "load" verb to
// restore a previously captured guest memory snapshot.
func (img *Image) LoadInto(mem its.GuestMemory) error {
	for _, r := range img.Regions {
		if err := mem.WriteBytes(r.Addr, r.Data); err != nil {
			return err
		}
	}

	return nil
}

// DumpFrom captures the byte ranges named by regions (address, length
// pairs) out of mem into a new Image, one Region per range in the order
// given.
func DumpFrom(mem its.GuestMemory, regions [][2]uint64) (*Image, error) {
	img := &Image{}

	for _, bounds := range regions {
		addr, length := bounds[0], bounds[1]

		buf := make([]byte, length)
		if err := mem.ReadBytes(addr, buf); err != nil {
			return nil, err
		}

		img.Regions = append(img.Regions, Region{Addr: addr, Data: buf})
	}

	return img, nil
}
