// Package macro implements the macro subcommands of the mme CLI: replaying,
// disassembling and single-stepping macro session files.
package macro

import (
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/gpuemu/mme/pkg/hw/mme"
	"github.com/gpuemu/mme/pkg/hw/mme/session"
)

// MacroCmd groups the macro engine subcommands.
var MacroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Run, disassemble and debug command processor macros",
}

var backendFlag string

func init() {
	MacroCmd.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "",
		"execution backend: compiled or interpreted (default: compiled)")
	_ = viper.BindPFlag("backend", MacroCmd.PersistentFlags().Lookup("backend"))
}

var (
	colorAddr     = color.New(color.FgCyan)
	colorWord     = color.New(color.FgHiBlack)
	colorMnemonic = color.New(color.FgYellow)
	colorOperands = color.New(color.FgGreen)
	colorResult   = color.New(color.FgMagenta)
	colorValue    = color.New(color.FgWhite, color.Bold)
	colorExit     = color.New(color.FgRed, color.Bold)
	colorName     = color.New(color.FgHiBlue)
	colorPrompt   = color.New(color.FgBlue, color.Bold)
	colorError    = color.New(color.FgRed, color.Bold)
	colorSuccess  = color.New(color.FgGreen)
)

// disableColorsForPipes turns colors off when stdout is not a terminal, so
// piped output stays grep-friendly.
func disableColorsForPipes() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

// loadSession loads a session file and builds an engine over a recording
// register file, seeded with the session's register values.
func loadSession(path string) (*session.Session, *mme.Engine, *mme.RecordingRegisters, error) {
	s, err := session.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}

	backend, err := mme.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return nil, nil, nil, err
	}

	regs := mme.NewRecordingRegisters()
	s.Seed(regs)

	engine := mme.NewEngine(regs,
		mme.WithBackend(backend),
		mme.WithLogger(slog.Default()))

	return s, engine, regs, nil
}

// printListing renders a disassembly listing, one line per code word.
func printListing(listing []mme.Disassembly) {
	for _, d := range listing {
		printListingLine(d, false)
	}
}

func printListingLine(d mme.Disassembly, current bool) {
	marker := "  "
	if current {
		marker = colorPrompt.Sprint("=>")
	}

	line := colorAddr.Sprintf("%04X:", d.Address) + " " +
		colorWord.Sprintf("%08X", d.Word) + "  " +
		colorMnemonic.Sprint(d.Mnemonic)
	if d.Operands != "" {
		line += " " + colorOperands.Sprint(d.Operands)
	}
	if d.Result != "" {
		line += " -> " + colorResult.Sprint(d.Result)
	}
	if d.Exit {
		line += " " + colorExit.Sprint("!exit")
	}

	os.Stdout.WriteString(marker + " " + line + "\n")
}

// printWrites renders the register writes an execution produced.
func printWrites(writes []mme.RegisterWrite) {
	for _, w := range writes {
		colorAddr.Printf("  [0x%03X]", w.Address)
		os.Stdout.WriteString(" <- ")
		colorValue.Printf("0x%08X", w.Value)
		os.Stdout.WriteString("\n")
	}
}
