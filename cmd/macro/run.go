package macro

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gpuemu/mme/pkg/hw/mme/session"
	"github.com/gpuemu/mme/pkg/utils"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run <session.yaml>",
	Short: "Replay a macro session and print the resulting register writes",
	Long: `Uploads every macro of the session, runs its invocations in order and
prints the engine register writes each invocation produced.

Example:
  mme macro run session.yaml
  mme macro run --backend interpreted session.yaml`,
	Args: cobra.ExactArgs(1),
	Run:  runRun,
}

func init() {
	MacroCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "only report errors")
}

func runRun(cmd *cobra.Command, args []string) {
	disableColorsForPipes()

	s, engine, regs, err := loadSession(args[0])
	if err != nil {
		colorError.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s.Upload(engine)

	failures := 0
	for i, inv := range s.Invocations {
		params := utils.Map(inv.Parameters, func(p session.Word) uint32 { return uint32(p) })

		before := len(regs.Writes)
		err := engine.Execute(uint32(inv.Method), params)

		if !runQuiet {
			colorName.Printf("%s", s.MacroName(inv.Method))
			fmt.Printf("(%v)\n", inv.Parameters)
			printWrites(regs.Writes[before:])
		}
		if err != nil {
			failures++
			colorError.Fprintf(os.Stderr, "Error: invocation %d: %v\n", i, err)
		}
	}

	if failures > 0 {
		os.Exit(2)
	}
	if !runQuiet {
		colorSuccess.Printf("%d invocations, %d register writes (%v backend)\n",
			len(s.Invocations), len(regs.Writes), engine.Backend())
	}
}
