package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDialect_Frame(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		desc     string
		dialect  Dialect
		id       uint64
		command  string
		expected string
	}{
		{
			desc:     "default dialect, first id",
			dialect:  DefaultDialect,
			id:       1,
			command:  "P2220",
			expected: "$1 P2220",
		},
		{
			desc:     "default dialect, move command",
			dialect:  DefaultDialect,
			id:       25,
			command:  "G0 X180.0000 Y0.0000 Z150.0000 F5000",
			expected: "$25 G0 X180.0000 Y0.0000 Z150.0000 F5000",
		},
		{
			desc:     "default dialect, empty command",
			dialect:  DefaultDialect,
			id:       3,
			command:  "",
			expected: "$3",
		},
		{
			desc:     "tick dialect",
			dialect:  TickDialect,
			id:       7,
			command:  "M114",
			expected: "gcode:7 M114",
		},
	}

	for _, test := range tests {
		require.Equal(test.expected, test.dialect.Frame(test.id, test.command), test.desc)
	}
}

func TestDialect_Validate(t *testing.T) {
	require := require.New(t)

	require.NoError(DefaultDialect.Validate())
	require.NoError(TickDialect.Validate())

	tests := []struct {
		desc    string
		dialect Dialect
	}{
		{
			desc:    "empty send prefix",
			dialect: Dialect{ReplyMarker: "r:", StatusMarker: "s:", ErrorMarker: "e:", ReadySentinel: "s: up"},
		},
		{
			desc:    "empty reply marker",
			dialect: Dialect{SendPrefix: "$", StatusMarker: "s:", ErrorMarker: "e:", ReadySentinel: "s: up"},
		},
		{
			desc:    "duplicate markers",
			dialect: Dialect{SendPrefix: "$", ReplyMarker: "x:", StatusMarker: "x:", ErrorMarker: "e:", ReadySentinel: "x: up"},
		},
		{
			desc:    "marker ending in a digit",
			dialect: Dialect{SendPrefix: "$", ReplyMarker: "r1", StatusMarker: "s:", ErrorMarker: "e:", ReadySentinel: "s: up"},
		},
		{
			desc:    "empty readiness sentinel",
			dialect: Dialect{SendPrefix: "$", ReplyMarker: "r:", StatusMarker: "s:", ErrorMarker: "e:"},
		},
	}

	for _, test := range tests {
		require.Error(test.dialect.Validate(), test.desc)
	}
}
