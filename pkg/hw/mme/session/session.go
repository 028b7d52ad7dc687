// Package session loads macro session files: YAML documents describing
// macro uploads, engine register seed values and an ordered list of
// invocations. The CLI replays sessions against an engine; tests use them
// as fixtures.
package session

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gpuemu/mme/pkg/hw/mme"
	"github.com/gpuemu/mme/pkg/utils"
)

// ErrSession reports a malformed or inconsistent session file.
var ErrSession = errors.New("invalid macro session")

// Word is a 32-bit scalar that accepts decimal, hex (0x), octal (0o) and
// binary (0b) notation in session files and renders back as hex.
type Word uint32

func (w *Word) UnmarshalYAML(node *yaml.Node) error {
	value, err := strconv.ParseUint(node.Value, 0, 32)
	if err != nil {
		return utils.MakeError(ErrSession,
			"bad word %q at line %d", node.Value, node.Line)
	}
	*w = Word(value)
	return nil
}

func (w Word) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%08X", uint32(w)), nil
}

// Macro is one uploaded macro program.
type Macro struct {
	Method Word   `yaml:"method"`
	Name   string `yaml:"name,omitempty"`
	Code   []Word `yaml:"code"`
}

// Invocation is one macro call with its parameter list.
type Invocation struct {
	Method     Word   `yaml:"method"`
	Parameters []Word `yaml:"parameters"`
}

// Session is a parsed session file.
type Session struct {
	// Registers seeds the engine register file before any invocation runs.
	Registers map[Word]Word `yaml:"registers,omitempty"`

	Macros      []Macro      `yaml:"macros"`
	Invocations []Invocation `yaml:"invocations,omitempty"`
}

// Parse decodes and validates a session document.
func Parse(data []byte) (*Session, error) {
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, utils.MakeError(ErrSession, "%v", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.MakeError(ErrSession, "reading %s: %v", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, utils.MakeError(err, "in %s", path)
	}
	return s, nil
}

func (s *Session) validate() error {
	if len(s.Macros) == 0 {
		return utils.MakeError(ErrSession, "session defines no macros")
	}

	methods := make(map[Word]string, len(s.Macros))
	for i, macro := range s.Macros {
		if len(macro.Code) == 0 {
			return utils.MakeError(ErrSession,
				"macro %s has no code", macro.label(i))
		}
		if previous, ok := methods[macro.Method]; ok {
			return utils.MakeError(ErrSession,
				"macro %s reuses method 0x%X of macro %s",
				macro.label(i), uint32(macro.Method), previous)
		}
		methods[macro.Method] = macro.label(i)
	}

	for i, inv := range s.Invocations {
		if _, ok := methods[inv.Method]; !ok {
			return utils.MakeError(ErrSession,
				"invocation %d calls method 0x%X, which no macro defines",
				i, uint32(inv.Method))
		}
		if len(inv.Parameters) == 0 {
			return utils.MakeError(ErrSession,
				"invocation %d of method 0x%X has no parameters",
				i, uint32(inv.Method))
		}
	}

	return nil
}

func (m Macro) label(index int) string {
	if m.Name != "" {
		return fmt.Sprintf("%q", m.Name)
	}
	return fmt.Sprintf("#%d", index)
}

// MacroName returns the declared name of a method, or its hex number.
func (s *Session) MacroName(method Word) string {
	for _, macro := range s.Macros {
		if macro.Method == method && macro.Name != "" {
			return macro.Name
		}
	}
	return fmt.Sprintf("0x%X", uint32(method))
}

// MacroByMethod returns the macro uploaded for a method number.
func (s *Session) MacroByMethod(method Word) (Macro, bool) {
	for _, macro := range s.Macros {
		if macro.Method == method {
			return macro, true
		}
	}
	return Macro{}, false
}

// Seed applies the register seed values of the session.
func (s *Session) Seed(regs *mme.RecordingRegisters) {
	for address, value := range s.Registers {
		regs.Seed(uint32(address), uint32(value))
	}
}

// Upload feeds every macro of the session through the engine's per-word
// upload path.
func (s *Session) Upload(engine *mme.Engine) {
	for _, macro := range s.Macros {
		for _, word := range macro.Code {
			engine.AddCode(uint32(macro.Method), uint32(word))
		}
	}
}

// Replay uploads the session's macros and runs its invocations in order.
func (s *Session) Replay(engine *mme.Engine) error {
	s.Upload(engine)

	for i, inv := range s.Invocations {
		params := utils.Map(inv.Parameters, func(p Word) uint32 { return uint32(p) })
		if err := engine.Execute(uint32(inv.Method), params); err != nil {
			return utils.MakeError(err, "invocation %d of macro %s",
				i, s.MacroName(inv.Method))
		}
	}
	return nil
}
