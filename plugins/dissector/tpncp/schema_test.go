package tpncp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := LoadSchema("testdata/tpncp.dat")
	require.NoError(t, err)
	return s
}

func TestLoadSchema_Catalogs(t *testing.T) {
	s := loadTestSchema(t)

	name, ok := s.Events.Name(100)
	assert.True(t, ok)
	assert.Equal(t, "DSP_STATUS", name)

	name, ok = s.Events.Name(1611)
	assert.True(t, ok)
	assert.Equal(t, "CHANNEL_CONFIG_UPDATE", name)

	name, ok = s.Commands.Name(4)
	assert.True(t, ok)
	assert.Equal(t, "OPEN_CHANNEL", name)

	_, ok = s.Events.Name(999)
	assert.False(t, ok)

	// event and command id spaces are disjoint catalogs
	_, ok = s.Events.Name(4)
	assert.False(t, ok)

	assert.Equal(t, []uint32{100, 110, 200, 1611}, s.Events.IDs())
	// 31 has a layout but no name and still shows up
	assert.Equal(t, []uint32{4, 30, 31}, s.Commands.IDs())
}

func TestLoadSchema_FieldRoles(t *testing.T) {
	s := loadTestSchema(t)

	open := s.Commands.Fields(4)
	require.Len(t, open, 8)
	assert.Equal(t, "cmd_rev_lsb", open[0].Name)
	assert.Equal(t, RoleOpenChannelStart, open[0].Role)
	assert.Equal(t, uint8(16), open[0].Size)
	assert.Equal(t, RoleNone, open[1].Role)
	assert.Equal(t, 7401, open[2].Since)
	assert.Equal(t, RoleSecurityOffset, open[3].Role)
	assert.False(t, open[4].Unsigned)
	assert.Equal(t, 8, open[5].ArrayDim)
	assert.Equal(t, RoleSecurityStart, open[6].Role)
	assert.Equal(t, 16, open[7].ArrayDim)

	state := s.Events.Fields(200)
	require.Len(t, state, 9)
	assert.Equal(t, RoleRTPStateOffset, state[1].Role)
	assert.False(t, state[1].Unsigned)
	assert.Equal(t, RoleRTPStateStart, state[2].Role)
	assert.Equal(t, RoleRTPStateStart, state[5].Role)
	assert.Equal(t, RoleRTPStateEnd, state[8].Role)

	cfg := s.Events.Fields(1611)
	require.Len(t, cfg, 6)
	assert.Equal(t, RoleChannelConfig, cfg[0].Role)
	assert.Equal(t, RoleChannelConfig, cfg[3].Role)
	assert.Equal(t, 7401, cfg[2].Since)
	assert.Equal(t, 7401, cfg[5].Since)
}

func TestLoadSchema_AddressFamilyCollapse(t *testing.T) {
	s := loadTestSchema(t)

	media := s.Events.Fields(110)
	require.Len(t, media, 4)

	af := media[0]
	assert.Equal(t, "address_family", af.Name)
	assert.Equal(t, RoleAddressFamily, af.Role)
	require.NotNil(t, af.Enum)
	assert.Equal(t, "IPV4", af.Enum[2])
	assert.Equal(t, "IPV6", af.Enum[10])
	assert.Equal(t, "IPV6_PSOS", af.Enum[28])

	// the _0 row widens to an address slot, _1.._3 disappear
	ip := media[1]
	assert.Equal(t, "remote_ip", ip.Name)
	assert.Equal(t, uint8(128), ip.Size)
	assert.Equal(t, RoleIPAddr, ip.Role)

	assert.Equal(t, "remote_port", media[2].Name)
	assert.Equal(t, uint8(16), media[2].Size)
}

func TestLoadSchema_EnumAttached(t *testing.T) {
	s := loadTestSchema(t)

	dsp := s.Events.Fields(100)
	require.Len(t, dsp, 7)
	require.NotNil(t, dsp[0].Enum)
	assert.Equal(t, "DSP_6310", dsp[0].Enum[2])
	assert.Nil(t, dsp[1].Enum)
}

func TestLoadSchema_DuplicateBlockSkipped(t *testing.T) {
	s := loadTestSchema(t)

	params := s.Commands.Fields(30)
	require.Len(t, params, 3)
	assert.Equal(t, "param_id", params[0].Name)
	assert.Equal(t, "unnamed", params[1].Name)
	assert.False(t, params[1].Unsigned)
	assert.Equal(t, "param_value", params[2].Name)

	// the second block for 30 after the 31 rows is dropped row by row
	assert.Equal(t, 1, s.Skipped())
	require.Len(t, s.Commands.Fields(31), 1)
	assert.Equal(t, "scratch", s.Commands.Fields(31)[0].Name)
}

func TestLoadSchema_MissingFile(t *testing.T) {
	_, err := LoadSchema("testdata/no-such-table.dat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open schema")
}

func TestParseSchema_Empty(t *testing.T) {
	_, err := ParseSchema(strings.NewReader("#####\n#####\n#####\n#####\n"))
	assert.ErrorIs(t, err, ErrNoSchema)
}

func TestParseSchema_MalformedRows(t *testing.T) {
	table := `GOOD_EVENT 7
LONESOME
BAD_ID x7
#####
GOOD_COMMAND 9
#####
Mode ON 1
Mode OFF
#####
7 flag 1 1 0 0 primitive
7 broken one two
7 mode 1 8 0 0 Mode
#####
9 value 1 32 0 0 primitive
`
	s, err := ParseSchema(strings.NewReader(table))
	require.NoError(t, err)

	// one short name row, one unparsable id, one short enum row, one
	// short field row
	assert.Equal(t, 4, s.Skipped())

	fields := s.Events.Fields(7)
	require.Len(t, fields, 2)
	assert.Equal(t, "flag", fields[0].Name)
	assert.Equal(t, "mode", fields[1].Name)
	assert.Equal(t, "ON", fields[1].Enum[1])

	require.Len(t, s.Commands.Fields(9), 1)
}

func TestParseSchema_UnnamedRow(t *testing.T) {
	table := `EV 1
#####
CMD 2
#####
#####
1 0 32 0 0 primitive
#####
2 1 16 0 0 primitive
`
	s, err := ParseSchema(strings.NewReader(table))
	require.NoError(t, err)

	ev := s.Events.Fields(1)
	require.Len(t, ev, 1)
	assert.Equal(t, "unnamed", ev[0].Name)
	assert.False(t, ev[0].Unsigned)
	assert.Equal(t, uint8(32), ev[0].Size)

	// a numeric name column shifts the remaining columns by one
	cmd := s.Commands.Fields(2)
	require.Len(t, cmd, 1)
	assert.Equal(t, "unnamed", cmd[0].Name)
	assert.True(t, cmd[0].Unsigned)
	assert.Equal(t, uint8(16), cmd[0].Size)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "normal", RoleNone.String())
	assert.Equal(t, "security-offset", RoleSecurityOffset.String())
	assert.Equal(t, "rtp-state-start", RoleRTPStateStart.String())
	assert.Equal(t, "role(99)", Role(99).String())
}
