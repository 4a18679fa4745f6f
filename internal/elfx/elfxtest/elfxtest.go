// Package elfxtest writes small synthetic ELF64 little-endian core files for tests.
package elfxtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Segment is one PT_LOAD to emit. Data is the file-backed part; Memsz may
// exceed len(Data) to model pages that were not dumped.
type Segment struct {
	Vaddr uint64
	Memsz uint64
	Data  []byte
	Flags elf.ProgFlag
}

// Mapping is one NT_FILE entry.
type Mapping struct {
	Start, End, PageOff uint64
	Path                string
}

const pageSize = 0x1000

// BuildCore returns the bytes of an ET_CORE file for machine m.
func BuildCore(m elf.Machine, segs []Segment, maps []Mapping) []byte {
	order := binary.LittleEndian
	var note []byte
	if len(maps) > 0 {
		note = fileNote(maps)
	}

	nprog := len(segs)
	if note != nil {
		nprog++
	}
	hdrSize := 64
	phSize := 56
	off := uint64(hdrSize + phSize*nprog)

	var progs []elf.Prog64
	var body bytes.Buffer
	if note != nil {
		progs = append(progs, elf.Prog64{
			Type:   uint32(elf.PT_NOTE),
			Off:    off,
			Filesz: uint64(len(note)),
			Align:  4,
		})
		body.Write(note)
		off += uint64(len(note))
	}
	for _, s := range segs {
		memsz := s.Memsz
		if memsz < uint64(len(s.Data)) {
			memsz = uint64(len(s.Data))
		}
		flags := s.Flags
		if flags == 0 {
			flags = elf.PF_R | elf.PF_W
		}
		progs = append(progs, elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(flags),
			Off:    off,
			Vaddr:  s.Vaddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  memsz,
			Align:  pageSize,
		})
		body.Write(s.Data)
		off += uint64(len(s.Data))
	}

	var hdr elf.Header64
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Type = uint16(elf.ET_CORE)
	hdr.Machine = uint16(m)
	hdr.Version = uint32(elf.EV_CURRENT)
	hdr.Phoff = uint64(hdrSize)
	hdr.Ehsize = uint16(hdrSize)
	hdr.Phentsize = uint16(phSize)
	hdr.Phnum = uint16(nprog)
	hdr.Shentsize = 64

	var out bytes.Buffer
	binary.Write(&out, order, &hdr)
	for i := range progs {
		binary.Write(&out, order, &progs[i])
	}
	out.Write(body.Bytes())
	return out.Bytes()
}

func pad4(b *bytes.Buffer) {
	for b.Len()%4 != 0 {
		b.WriteByte(0)
	}
}

func fileNote(maps []Mapping) []byte {
	order := binary.LittleEndian
	var desc bytes.Buffer
	binary.Write(&desc, order, uint64(len(maps)))
	binary.Write(&desc, order, uint64(pageSize))
	for _, m := range maps {
		binary.Write(&desc, order, m.Start)
		binary.Write(&desc, order, m.End)
		binary.Write(&desc, order, m.PageOff)
	}
	for _, m := range maps {
		desc.WriteString(m.Path)
		desc.WriteByte(0)
	}

	name := "CORE\x00"
	var b bytes.Buffer
	binary.Write(&b, order, uint32(len(name)))
	binary.Write(&b, order, uint32(desc.Len()))
	binary.Write(&b, order, uint32(0x46494c45))
	b.WriteString(name)
	pad4(&b)
	b.Write(desc.Bytes())
	pad4(&b)
	return b.Bytes()
}
