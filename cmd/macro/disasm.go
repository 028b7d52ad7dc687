package macro

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gpuemu/mme/pkg/hw/mme"
	"github.com/gpuemu/mme/pkg/hw/mme/session"
	"github.com/gpuemu/mme/pkg/utils"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <session.yaml | hex words...>",
	Short: "Disassemble the macros of a session file, or raw code words",
	Long: `Prints a listing of every macro in the session, or of code words given
directly on the command line.

Example:
  mme macro disasm session.yaml
  mme macro disasm 0x00000271 0x00000091`,
	Args: cobra.MinimumNArgs(1),
	Run:  runDisasm,
}

func init() {
	MacroCmd.AddCommand(disasmCmd)
}

func runDisasm(cmd *cobra.Command, args []string) {
	disableColorsForPipes()

	if code, ok := parseWords(args); ok {
		printListing(mme.DisassembleProgram(code))
		return
	}

	if len(args) != 1 {
		colorError.Fprintln(os.Stderr, "Error: expected one session file or a list of hex words")
		os.Exit(1)
	}

	s, err := session.Load(args[0])
	if err != nil {
		colorError.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, macro := range s.Macros {
		colorName.Printf("%s", s.MacroName(macro.Method))
		fmt.Printf(" (method 0x%X, %d words)\n", uint32(macro.Method), len(macro.Code))

		code := utils.Map(macro.Code, func(w session.Word) uint32 { return uint32(w) })
		printListing(mme.DisassembleProgram(code))
		fmt.Println()
	}
}

// parseWords interprets every argument as a 32-bit code word. It fails on
// the first argument that is not a number, in which case the arguments name
// a session file instead.
func parseWords(args []string) ([]uint32, bool) {
	code := make([]uint32, len(args))
	for i, arg := range args {
		value, err := strconv.ParseUint(arg, 0, 32)
		if err != nil {
			return nil, false
		}
		code[i] = uint32(value)
	}
	return code, true
}
