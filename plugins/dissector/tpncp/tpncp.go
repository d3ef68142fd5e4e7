// Package tpncp dissects AudioCodes TrunkPack Network Control Protocol
// records.
//
// TPNCP is not self-describing on the wire: every record is a bare
// struct dump whose layout lives in a driver table (tpncp.dat) shipped
// with the device firmware. The table names every event and command id
// and lists, per id, an ordered run of field descriptors with widths of
// 1..8 bits, 16 or 32 bit integers, fixed ASCII strings or 16-byte
// address slots. The dissector therefore splits in two: a schema loader
// that builds the catalogs once at startup, and a record interpreter
// that walks a layout over the payload with a sub-byte cursor.
//
// Senders encode in their native byte order. The id field at offset 8
// is sniffed per record to pick big or little endian; the bitfield
// packing direction follows. Events originate from the device ports
// (2424, HA 2442), commands from the host side; the two id spaces are
// disjoint catalogs.
//
// A handful of descriptor names drive non-sequential decoding: offsets
// into a security block relative to an anchor field, a dual RX/TX RTP
// state area split from the remaining record, and a two-channel
// configuration mirror. The interpreter keeps explicit redirect
// registers for these and parks in-order fields that would overrun a
// pending redirect target.
//
// Without a loadable driver table the dissector stays passive and
// consumes nothing.
package tpncp

import (
	"encoding/binary"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/tytonet/tyto/internal/metrics"
	"github.com/tytonet/tyto/pkg/dissect"
)

// Fixed header layout, offsets from the record start:
//
//	offset  size  field
//	     0     2  version
//	     2     2  length
//	     4     2  sequence number
//	     6     1  length extension, each unit adds 0xffff bytes
//	     7     1  reserved
//	     8     4  event or command id
//	    12     4  channel id, present when length > 8
const (
	offVersion   = 0
	offLength    = 2
	offSeqNum    = 4
	offLenExt    = 6
	offReserved  = 7
	offMessageID = 8
	offChannelID = 12

	headerLen      = 12
	eventBodyOff   = 16
	commandBodyOff = 12
)

// Default device ports. Events are sourced from the base and HA ports.
const (
	defaultPort   = 2424
	defaultHAPort = 2442
)

// Options are the decode preferences.
type Options struct {
	LoadSchema bool   `mapstructure:"load_schema"`
	SchemaPath string `mapstructure:"schema_path"`
	Port       uint16 `mapstructure:"port"`
	HAPort     uint16 `mapstructure:"ha_port"`
}

// DefaultOptions returns the stock preferences.
func DefaultOptions() Options {
	return Options{
		LoadSchema: true,
		SchemaPath: "tpncp.dat",
		Port:       defaultPort,
		HAPort:     defaultHAPort,
	}
}

// OptionsFromMap decodes a raw option map over the defaults.
func OptionsFromMap(raw map[string]any) (Options, error) {
	opts := DefaultOptions()
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return opts, fmt.Errorf("tpncp: decode options: %w", err)
	}
	return opts, nil
}

// Dissector decodes TPNCP datagrams and TCP streams against a loaded
// driver table.
type Dissector struct {
	opts   Options
	schema *Schema
}

// New returns a dissector bound to a parsed schema. A nil schema keeps
// the dissector passive: every Dissect consumes zero bytes so the
// engine falls through to other handlers.
func New(opts Options, schema *Schema) *Dissector {
	return &Dissector{opts: opts, schema: schema}
}

// Name returns the dissector identifier used in registries and output.
func (d *Dissector) Name() string { return "tpncp" }

// Active reports whether a driver table is loaded.
func (d *Dissector) Active() bool { return d.schema != nil }

// Dissect decodes one TPNCP record. The source port decides the id
// space: records sourced from the device ports are events, everything
// else is a command. The whole buffer is consumed; the declared length
// only gates which header fields are present and whether a body
// follows.
func (d *Dissector) Dissect(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	if d.schema == nil {
		return 0, nil
	}
	if len(data) < headerLen {
		t := tree.Branch("tpncp", 0, len(data), "TPNCP")
		t.Expert(dissect.SeverityError, "truncated header: %d bytes", len(data))
		return 0, nil
	}

	enc := sniffEncoding(data)
	ver := enc.bo.Uint16(data[offVersion:])
	length := enc.bo.Uint16(data[offLength:])
	seq := enc.bo.Uint16(data[offSeqNum:])
	lenExt := data[offLenExt]
	full := 0xffff*int(lenExt) + int(length)
	id := enc.bo.Uint32(data[offMessageID:])

	hdr := tree.Branch("tpncp", 0, len(data), "TPNCP")
	hdr.Add("tpncp.version", offVersion, 2, ver)
	hdr.Add("tpncp.length", offLength, 2, length)
	hdr.Add("tpncp.seq_number", offSeqNum, 2, seq)
	hdr.Add("tpncp.lengthextension", offLenExt, 1, lenExt)
	hdr.Add("tpncp.reserved", offReserved, 1, data[offReserved])

	cid := int32(-1)
	if length > 8 && len(data) >= offChannelID+4 {
		cid = int32(enc.bo.Uint32(data[offChannelID:]))
	}

	event := frame.SrcPort == d.opts.Port || frame.SrcPort == d.opts.HAPort
	var (
		catalog  Catalog
		kind     string
		idField  string
		bodyOff  int
		bodyGate uint16
	)
	if event {
		catalog, kind, idField = d.schema.Events, "Event", "tpncp.event_id"
		bodyOff, bodyGate = eventBodyOff, 12
		metrics.TPNCPRecordsTotal.WithLabelValues("event").Inc()
	} else {
		catalog, kind, idField = d.schema.Commands, "Command", "tpncp.command_id"
		bodyOff, bodyGate = commandBodyOff, 8
		metrics.TPNCPRecordsTotal.WithLabelValues("command").Inc()
	}

	name, known := catalog.Name(id)
	display := name
	if !known {
		display = "Unknown"
	}
	hdr.Addf(idField, offMessageID, 4, id, "%s ID: %s (%d)", kind, display, id)
	if known {
		if event && length > 8 && len(data) >= offChannelID+4 {
			hdr.Add("tpncp.channel_id", offChannelID, 4, cid)
		}
		if fields := catalog.Fields(id); fields != nil && length > bodyGate {
			if len(data) > bodyOff {
				body := tree.Branch("tpncp.body", bodyOff, len(data)-bodyOff, "TPNCP %s: %s (%d)", kind, name, id)
				interpretRecord(data, bodyOff, fields, int(ver), enc, body)
			} else {
				hdr.Expert(dissect.SeverityWarn, "declared length %d but the capture ends at %d", full, len(data))
			}
		}
	}

	idLabel := "Cmd"
	if event {
		idLabel = "Ev"
	}
	hdr.AppendText(": %sID=%s(%d), SeqNo=%d, CID=%d, Len=%d, Ver=%d",
		idLabel, display, id, seq, cid, full, ver)

	return len(data), nil
}

// sniffEncoding infers the record byte order from the message id. Ids
// are small, so a big-endian sender always leaves the two high bytes of
// the id zero.
func sniffEncoding(data []byte) recordEncoding {
	if binary.BigEndian.Uint16(data[offMessageID:]) == 0 {
		return recordEncoding{bo: binary.BigEndian}
	}
	return recordEncoding{bo: binary.LittleEndian, le: true}
}

// streamMinHeader is the prefix needed to derive a PDU length from a
// TCP stream: through the length extension byte.
const streamMinHeader = 7

// pduLen returns the on-wire length of the PDU starting at off: the
// declared length plus the 4 leading bytes it does not count. The
// framing words are read big-endian regardless of the record encoding.
func pduLen(data []byte, off int) int {
	return int(binary.BigEndian.Uint16(data[off+2:])) + 0xffff*int(data[off+6]) + 4
}

// DissectStream decodes back-to-back PDUs from one reassembled TCP
// payload. Field offsets inside each PDU's subtree are PDU-relative. A
// trailing partial PDU is reported as incomplete and the whole buffer
// counts as consumed.
func (d *Dissector) DissectStream(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	if d.schema == nil {
		return 0, nil
	}
	offset := 0
	for offset < len(data) {
		rem := len(data) - offset
		if rem < streamMinHeader {
			t := tree.Branch("tpncp", offset, rem, "TPNCP (incomplete)")
			t.Expert(dissect.SeverityWarn, "short PDU header: %d bytes", rem)
			return len(data), nil
		}
		plen := pduLen(data, offset)
		if plen > rem {
			t := tree.Branch("tpncp", offset, rem, "TPNCP (incomplete)")
			t.Expert(dissect.SeverityWarn, "incomplete PDU: %d bytes captured of %d", rem, plen)
			return len(data), nil
		}
		if _, err := d.Dissect(data[offset:offset+plen], frame, tree); err != nil {
			return offset, err
		}
		offset += plen
	}
	return offset, nil
}
