// Package pcapfile reads frames from classic pcap and pcapng capture
// files. The container format is sniffed from the leading magic bytes, so
// callers never have to declare which of the two they hold. Frames are
// numbered by their position in the file; an optional BPF filter drops
// frames without renumbering the survivors, which keeps frame numbers
// aligned with what other capture tools display for the same file.
package pcapfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"golang.org/x/net/bpf"

	"github.com/tytonet/tyto/internal/core"
)

// Capture file magics. Classic pcap writes its magic in host byte order,
// so both orders of the microsecond and nanosecond variants appear in the
// wild. pcapng section headers start with a palindromic block type that
// reads the same either way.
const (
	magicMicroseconds   = 0xa1b2c3d4
	magicMicrosecondsBE = 0xd4c3b2a1
	magicNanoseconds    = 0xa1b23c4d
	magicNanosecondsBE  = 0x4d3cb2a1
	magicNgSectionHdr   = 0x0a0d0d0a
)

// packetReader is the part of pcapgo.Reader and pcapgo.NgReader the
// source consumes.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads frames from one capture file.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
	filter *bpf.VM
	number uint32
}

// Open opens a capture file and prepares it for reading. The format is
// detected from the first four bytes.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcapfile: %w", err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapfile: %s: %v: %w", path, err, core.ErrBadCaptureFile)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapfile: %s: %w", path, err)
	}

	var reader packetReader
	switch m := binary.BigEndian.Uint32(magic[:]); m {
	case magicMicroseconds, magicMicrosecondsBE, magicNanoseconds, magicNanosecondsBE:
		reader, err = pcapgo.NewReader(f)
	case magicNgSectionHdr:
		reader, err = pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	default:
		f.Close()
		return nil, fmt.Errorf("pcapfile: %s: unknown capture magic 0x%08x: %w", path, m, core.ErrBadCaptureFile)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapfile: %s: %v: %w", path, err, core.ErrBadCaptureFile)
	}

	return &Source{path: path, file: f, reader: reader}, nil
}

// LinkType returns the capture's link layer type as a pcap linktype
// number.
func (s *Source) LinkType() int {
	return int(s.reader.LinkType())
}

// SetFilter installs a BPF filter expression. Frames the filter rejects
// are skipped by Next but still counted, so surviving frames keep their
// file-position numbers. An empty expression removes the filter.
func (s *Source) SetFilter(filter string) error {
	if filter == "" {
		s.filter = nil
		return nil
	}
	vm, err := compileFilter(s.reader.LinkType(), filter)
	if err != nil {
		return err
	}
	s.filter = vm
	return nil
}

// Next returns the next frame that passes the filter. It returns an error
// wrapping core.ErrSourceExhausted once the file is fully read.
func (s *Source) Next() (core.RawPacket, error) {
	for {
		data, ci, err := s.reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return core.RawPacket{}, fmt.Errorf("pcapfile: %s: %w", s.path, core.ErrSourceExhausted)
		}
		if err != nil {
			return core.RawPacket{}, fmt.Errorf("pcapfile: %s: frame %d: %w", s.path, s.number+1, err)
		}
		s.number++

		if s.filter != nil {
			n, err := s.filter.Run(data)
			if err != nil {
				return core.RawPacket{}, fmt.Errorf("pcapfile: %s: frame %d: filter: %w", s.path, s.number, err)
			}
			if n == 0 {
				continue
			}
		}

		return core.RawPacket{
			Number:     s.number,
			Data:       data,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
		}, nil
	}
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}
