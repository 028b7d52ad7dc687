package session

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuemu/mme/pkg/hw/mme"
)

func TestParse(t *testing.T) {
	doc := `
registers:
  0x200: 0xCAFE
macros:
  - method: 0x10
    name: blit
    code: [0x00000271, 0b111, 42]
invocations:
  - method: 0x10
    parameters: [0x6C0, 1]
`
	s, err := Parse([]byte(doc))
	require.NoError(t, err)

	require.Len(t, s.Macros, 1)
	assert.Equal(t, Word(0x10), s.Macros[0].Method)
	assert.Equal(t, "blit", s.Macros[0].Name)
	assert.Equal(t, []Word{0x271, 0b111, 42}, s.Macros[0].Code)

	require.Len(t, s.Invocations, 1)
	assert.Equal(t, []Word{0x6C0, 1}, s.Invocations[0].Parameters)

	assert.Equal(t, Word(0xCAFE), s.Registers[0x200])

	assert.Equal(t, "blit", s.MacroName(0x10))
	assert.Equal(t, "0x99", s.MacroName(0x99))

	macro, ok := s.MacroByMethod(0x10)
	require.True(t, ok)
	assert.Equal(t, "blit", macro.Name)
	_, ok = s.MacroByMethod(0x99)
	assert.False(t, ok)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "macros: [{"},
		{"no macros", "invocations: []"},
		{"word overflow", "macros: [{method: 0x100000000, code: [1]}]"},
		{"word not a number", "macros: [{method: top, code: [1]}]"},
		{"macro without code", "macros: [{method: 0x10, code: []}]"},
		{
			name: "duplicate method",
			doc: `macros:
  - {method: 0x10, code: [1]}
  - {method: 0x10, code: [2]}`,
		},
		{
			name: "invocation of an undefined method",
			doc: `macros: [{method: 0x10, code: [1]}]
invocations: [{method: 0x11, parameters: [0]}]`,
		},
		{
			name: "invocation without parameters",
			doc: `macros: [{method: 0x10, code: [1]}]
invocations: [{method: 0x10, parameters: []}]`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.doc))
			assert.ErrorIs(t, err, ErrSession)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("macros: [{method: 1, code: [7]}]"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Macros, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrSession)
}

// increment macro: sends parameter 1 plus one to the engine register named
// by parameter 0.
func incrementSession(t *testing.T) *Session {
	t.Helper()

	doc := fmt.Sprintf(`
macros:
  - method: 0x10
    name: increment
    code: [0x%08X, 0x%08X, 0x%08X, 0x%08X]
invocations:
  - {method: 0x10, parameters: [0x42, 41]}
  - {method: 0x10, parameters: [0x50, 5]}
`,
		mme.EncodeALU(mme.AluAdd, mme.ResultMoveAndSetMethod, 0, 1, 0),
		mme.EncodeALU(mme.AluAdd, mme.ResultIgnoreAndFetch, 2, 0, 0),
		mme.WithExit(mme.EncodeAddImmediate(mme.ResultMoveAndSend, 3, 2, 1)),
		mme.Nop(),
	)

	s, err := Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestReplay(t *testing.T) {
	regs := mme.NewRecordingRegisters()
	engine := mme.NewEngine(regs)

	require.NoError(t, incrementSession(t).Replay(engine))

	require.Len(t, regs.Writes, 2)
	assert.Equal(t, mme.RegisterWrite{Address: 0x42, Value: 42}, regs.Writes[0])
	assert.Equal(t, mme.RegisterWrite{Address: 0x50, Value: 6}, regs.Writes[1])
}

func TestReplayReportsTheFailingInvocation(t *testing.T) {
	s := incrementSession(t)
	s.Invocations[1].Parameters = []Word{0x50} // parameter underrun

	err := s.Replay(mme.NewEngine(mme.NewRecordingRegisters(),
		mme.WithLogger(discardLogger())))

	require.Error(t, err)
	assert.ErrorIs(t, err, mme.ErrMacro)
	assert.Contains(t, err.Error(), "invocation 1")
	assert.Contains(t, err.Error(), "increment")
}

func TestSeed(t *testing.T) {
	s, err := Parse([]byte(`
registers: {0x200: 7, 0x201: 8}
macros: [{method: 1, code: [1]}]
`))
	require.NoError(t, err)

	regs := mme.NewRecordingRegisters()
	s.Seed(regs)

	assert.Equal(t, uint32(7), regs.ReadRegisterValue(0x200))
	assert.Equal(t, uint32(8), regs.ReadRegisterValue(0x201))
	assert.Empty(t, regs.Writes, "seeding must not record writes")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWordMarshalsAsHex(t *testing.T) {
	out, err := Word(0x1040).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "0x00001040", out)
}
