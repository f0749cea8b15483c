package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/commune/internal/core/config"
	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/txcore/encoder"
	"github.com/vietddude/commune/internal/txcore/reconcile"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"communeId=1", "description=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, encoder.Args{"communeId": "1", "description": "a=b", "empty": ""}, args)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseArgs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestResolveAccount(t *testing.T) {
	cfg := &config.AppConfig{}
	_, err := resolveAccount("", cfg)
	assert.Error(t, err)

	got, err := resolveAccount("0xabc", cfg)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got)

	cfg.Session.PrivateKey = "0xb71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	got, err = resolveAccount("", cfg)
	require.NoError(t, err)
	assert.Equal(t, "0xa94f5374Fce5edBC8E2a8697C15331677e6EbF0B", got)
}

func TestFormatFields(t *testing.T) {
	assert.Equal(t, "assignee=0x1 completed=true", formatFields(map[string]any{"completed": true, "assignee": "0x1"}))
	assert.Equal(t, "", formatFields(nil))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "", shortHash(""))
	assert.Equal(t, "0x12345c…cdef", shortHash("0x12345cabcdef0123456789abcdef"))
}

func TestSubmitExamplesUseKnownFields(t *testing.T) {
	for _, line := range strings.Split(submitCmd.Example, "\n") {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 3, line)
		kind := domain.ActionKind(fields[2])
		spec, ok := reconcile.Operations[kind]
		require.True(t, ok, "unknown kind %s", kind)

		var pairs []string
		for i := 3; i+1 < len(fields); i++ {
			if fields[i] == "--arg" {
				pairs = append(pairs, fields[i+1])
			}
		}
		args, err := parseArgs(pairs)
		require.NoError(t, err)
		for _, f := range spec.RequiredFields {
			assert.NotEmpty(t, args.Get(f), "%s example is missing %s", kind, f)
		}
	}
}
