package tpncp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrNoSchema marks a driver table that defines no messages at all.
var ErrNoSchema = errors.New("tpncp: schema defines no messages")

// sectionMark separates the five sections of a driver table: event
// names, command names, enum labels, event field rows, command field
// rows.
const sectionMark = "#####"

// maxMessageID caps catalog growth when an id column is corrupt.
const maxMessageID = 1 << 16

// Message ids whose layouts carry name-keyed special roles: 4 is the
// channel open command, 1611 the channel configuration update.
const (
	idOpenChannel   = 4
	idChannelConfig = 1611
)

// Role classifies fields whose decode is not purely sequential. The
// interpreter keeps a redirect register per role family and moves its
// cursor when the paired start role fires.
type Role uint8

const (
	RoleNone             Role = iota
	RoleAddressFamily         // sizes the next address slot
	RoleIPAddr                // 4 or 16 byte address in a 16-byte slot
	RoleOpenChannelStart      // anchor for security offsets
	RoleSecurityOffset        // offset of the security block, anchor-relative
	RoleSecurityStart         // jump to the security block
	RoleRTPStateOffset        // offset of the RTP state block
	RoleRTPStateStart         // jump to the RX block, then the mirrored TX block
	RoleRTPStateEnd           // leave RTP state decoding
	RoleChannelConfig         // split the remainder between two channel halves
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "normal"
	case RoleAddressFamily:
		return "address-family"
	case RoleIPAddr:
		return "ip-addr"
	case RoleOpenChannelStart:
		return "open-channel-start"
	case RoleSecurityOffset:
		return "security-offset"
	case RoleSecurityStart:
		return "security-start"
	case RoleRTPStateOffset:
		return "rtp-state-offset"
	case RoleRTPStateStart:
		return "rtp-state-start"
	case RoleRTPStateEnd:
		return "rtp-state-end"
	case RoleChannelConfig:
		return "channel-configuration"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Field is one descriptor of a message layout. Size is the wire width:
// 1..8 are bit counts packed into shared bytes, 16 and 32 are integers
// in the record's byte order, 128 is an address slot. ArrayDim turns a
// byte-width field into a fixed ASCII string. The driver table's sign
// column is inverted relative to its name: a set flag means unsigned.
type Field struct {
	Name     string
	Size     uint8
	Unsigned bool
	ArrayDim int
	Role     Role
	Since    int // minimum header version, 0 = always
	Enum     map[int]string
}

// Catalog maps message ids to names and field layouts. Events and
// commands are separate catalogs built from one driver table.
type Catalog struct {
	names  map[uint32]string
	fields [][]Field
}

// Name returns the message name bound to id.
func (c Catalog) Name(id uint32) (string, bool) {
	n, ok := c.names[id]
	return n, ok
}

// Fields returns the ordered field layout of id, nil when the table
// carries none.
func (c Catalog) Fields(id uint32) []Field {
	if id >= uint32(len(c.fields)) {
		return nil
	}
	return c.fields[id]
}

// IDs returns every message id with a name or a layout, sorted.
func (c Catalog) IDs() []uint32 {
	seen := make(map[uint32]struct{}, len(c.names))
	for id := range c.names {
		seen[id] = struct{}{}
	}
	for id, f := range c.fields {
		if f != nil {
			seen[uint32(id)] = struct{}{}
		}
	}
	out := make([]uint32, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Schema is a parsed tpncp.dat driver table.
type Schema struct {
	Events   Catalog
	Commands Catalog

	skipped int
}

// Skipped returns the number of malformed rows dropped during parsing.
func (s *Schema) Skipped() int { return s.skipped }

// LoadSchema reads a driver table from disk.
func LoadSchema(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tpncp: open schema: %w", err)
	}
	defer f.Close()
	return ParseSchema(f)
}

// ParseSchema parses the five #####-separated sections of a driver
// table. Rows that do not parse are dropped and counted, never fatal; a
// table without any message names fails outright so a bogus file
// disables the dissector instead of feeding it an empty catalog.
func ParseSchema(r io.Reader) (*Schema, error) {
	sc := bufio.NewScanner(r)
	s := &Schema{}
	s.Events.names = parseNames(sc, &s.skipped)
	s.Commands.names = parseNames(sc, &s.skipped)
	enums := parseEnums(sc, &s.skipped)
	s.Events.fields = parseLayouts(sc, enums, &s.skipped)
	s.Commands.fields = parseLayouts(sc, enums, &s.skipped)
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tpncp: read schema: %w", err)
	}
	if len(s.Events.names) == 0 && len(s.Commands.names) == 0 {
		return nil, ErrNoSchema
	}
	return s, nil
}

// parseNames reads a "name id" section into a lookup map.
func parseNames(sc *bufio.Scanner, skipped *int) map[uint32]string {
	names := make(map[uint32]string)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, sectionMark) {
			break
		}
		if line == "" {
			continue
		}
		tok := strings.Fields(line)
		if len(tok) < 2 {
			*skipped++
			continue
		}
		id, err := strconv.ParseUint(tok[1], 10, 32)
		if err != nil {
			*skipped++
			continue
		}
		names[uint32(id)] = tok[0]
	}
	return names
}

// parseEnums reads "enum label value" triples grouped by enum name.
func parseEnums(sc *bufio.Scanner, skipped *int) map[string]map[int]string {
	enums := make(map[string]map[int]string)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, sectionMark) {
			break
		}
		if line == "" {
			continue
		}
		tok := strings.Fields(line)
		if len(tok) < 3 {
			*skipped++
			continue
		}
		val, err := strconv.Atoi(tok[2])
		if err != nil {
			*skipped++
			continue
		}
		m, ok := enums[tok[0]]
		if !ok {
			m = make(map[int]string)
			enums[tok[0]] = m
		}
		m[val] = tok[1]
	}
	return enums
}

// fieldRow is one raw descriptor line: message_id name sign size
// array_dim ip_flag type. A numeric second column means the row carries
// no name; shipped tables contain such rows and they decode as
// "unnamed".
type fieldRow struct {
	id     int
	name   string
	sign   bool
	size   int
	dim    int
	ipFlag bool
	typ    string
}

func parseFieldRow(tok []string) (fieldRow, bool) {
	var row fieldRow
	if len(tok) < 6 {
		return row, false
	}
	id, err := strconv.Atoi(tok[0])
	if err != nil {
		return row, false
	}
	row.id = id
	rest := tok[1:]
	if rest[0][0] >= '0' && rest[0][0] <= '9' {
		row.name = "unnamed"
	} else {
		row.name = rest[0]
		rest = rest[1:]
	}
	if len(rest) < 5 {
		return row, false
	}
	var nums [4]int
	for i := range nums {
		v, err := strconv.Atoi(rest[i])
		if err != nil {
			return row, false
		}
		nums[i] = v
	}
	row.sign = nums[0] != 0
	row.size = nums[1]
	row.dim = nums[2]
	row.ipFlag = nums[3] != 0
	row.typ = rest[4]
	return row, true
}

// parseLayouts reads one field-row section into an arena indexed by
// message id. Rows of one message are expected contiguously; a second
// block for an already-built id is dropped row by row. An AddressFamily
// typed row opens a four-row address group in which the _0 row widens
// to a 16-byte address slot and the _1.._3 rows disappear.
func parseLayouts(sc *bufio.Scanner, enums map[string]map[int]string, skipped *int) [][]Field {
	var arena [][]Field
	curID := -1
	afPrev := false // previous row was AddressFamily typed
	addrRows := 0   // rows left in the current address group

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, sectionMark) {
			break
		}
		if line == "" {
			continue
		}
		row, ok := parseFieldRow(strings.Fields(line))
		if !ok {
			*skipped++
			continue
		}

		role, since := classifyField(row.id, row.name)
		if row.sign && row.ipFlag {
			role = RoleIPAddr
		}
		name, size := row.name, row.size
		if addrRows > 0 {
			addrRows--
			if n := len(name); n > 2 && name[n-2] == '_' {
				if c := name[n-1]; c >= '1' && c <= '3' {
					// tail rows of a collapsed address group
					continue
				}
				if afPrev {
					name, size = name[:n-2], 128
					role = RoleIPAddr
				} else {
					addrRows = 0
				}
			}
		}
		afPrev = false

		if row.id < 0 || row.id > maxMessageID {
			*skipped++
			continue
		}
		if curID != row.id {
			for len(arena) <= row.id {
				arena = append(arena, nil)
			}
			if arena[row.id] != nil {
				*skipped++
				continue
			}
			curID = row.id
		}

		var enum map[int]string
		if row.typ != "primitive" {
			if m, ok := enums[row.typ]; ok {
				enum = m
				if row.typ == "AddressFamily" {
					role = RoleAddressFamily
					afPrev = true
					addrRows = 4
				}
			}
		}

		arena[curID] = append(arena[curID], Field{
			Name:     name,
			Size:     uint8(size),
			Unsigned: row.sign,
			ArrayDim: row.dim,
			Role:     role,
			Since:    since,
			Enum:     enum,
		})
	}
	return arena
}

// classifyField maps the special descriptor names of the driver tables
// onto roles. Two fields joined the tables at version 7401 and must not
// consume bytes against older senders, hence the version gate.
func classifyField(id int, name string) (role Role, since int) {
	switch {
	case name == "cmd_rev_lsb":
		return RoleOpenChannelStart, 0
	case name == "rtp_authentication_algorithm":
		return RoleSecurityStart, 0
	case name == "security_cmd_offset":
		return RoleSecurityOffset, 0
	case name == "ssrc" && id != idChannelConfig:
		return RoleRTPStateStart, 0
	case name == "rtp_tx_state_ssrc":
		return RoleRTPStateStart, 0
	case name == "rtp_state_offset":
		return RoleRTPStateOffset, 0
	case name == "state_update_time_stamp":
		return RoleRTPStateEnd, 0
	case id == idChannelConfig && strings.Contains(name, "configuration_type_updated"):
		return RoleChannelConfig, 0
	case id == idOpenChannel && strings.Contains(name, "secondary_rtp_seq_num"),
		id == idChannelConfig && strings.Contains(name, "dtls_remote_fingerprint_alg"):
		return RoleNone, 7401
	}
	return RoleNone, 0
}
