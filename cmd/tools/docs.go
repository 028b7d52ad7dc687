package tools

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gpuemu/mme/pkg/hw/mme"
	"github.com/gpuemu/mme/pkg/utils"
)

var supportedModules = map[string]func() string{
	"macro.instruction_set": instructionSetDoc,
}

var docsCmd = &cobra.Command{
	Use:   "docs module",
	Short: "Show mme documentation",
	Long: `Dumps the documentation of the specified mme module.
By default the tool dumps the documentation to stdout, but it can be redirected to a file using the --output flag.

Supported modules:
` + strings.Join(utils.Map(utils.Keys(supportedModules), func(module string) string { return "  " + module }), "\n"),
	Args:      cobra.MatchAll(cobra.OnlyValidArgs, cobra.MaximumNArgs(1), cobra.MinimumNArgs(1)),
	ValidArgs: utils.Keys(supportedModules),
	Run: func(cmd *cobra.Command, args []string) {
		module := args[0]
		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			file, err := os.Create(outputFile)
			if err != nil {
				fmt.Println("Error creating file:", err)
				os.Exit(1)
			}
			defer file.Close()
			fmt.Fprintln(file, supportedModules[module]())
		} else {
			fmt.Println(supportedModules[module]())
		}
	},
}

func init() {
	ToolsCmd.AddCommand(docsCmd)
	docsCmd.Flags().StringP("output", "o", "", "Output file. If not specified, the documentation is dumped to stdout.")
}

// instructionSetDoc renders a reference of the macro instruction set: the
// operation and result operation encodings, the ALU sub-operations and the
// code word bit layout.
func instructionSetDoc() string {
	var sb strings.Builder

	sb.WriteString("# Macro instruction set\n\n")
	sb.WriteString("Each instruction is one 32-bit code word. Bit 7 is the exit flag;\n")
	sb.WriteString("the instruction after an exit (its delay slot) still executes.\n\n")

	sb.WriteString("## Operations (bits 0-2)\n\n")
	for op := mme.OpALU; op <= mme.OpBranch; op++ {
		fmt.Fprintf(&sb, "  %s  %v\n", utils.FormatUintBinary(uint64(op), 3), op)
	}

	sb.WriteString("\n## ALU sub-operations (bits 17-21 of an alu word)\n\n")
	aluOps := []mme.ALUOperation{
		mme.AluAdd, mme.AluAddWithCarry, mme.AluSubtract, mme.AluSubtractWithBorrow,
		mme.AluXor, mme.AluOr, mme.AluAnd, mme.AluAndNot, mme.AluNand,
	}
	for _, op := range aluOps {
		note := ""
		if op == mme.AluAddWithCarry || op == mme.AluSubtractWithBorrow {
			note = "  (unimplemented)"
		}
		fmt.Fprintf(&sb, "  %s  %v%s\n", utils.FormatUintBinary(uint64(op), 5), op, note)
	}

	sb.WriteString("\n## Result operations (bits 4-6)\n\n")
	for op := mme.ResultIgnoreAndFetch; op <= mme.ResultMoveAndSetMethodSend; op++ {
		fmt.Fprintf(&sb, "  %s  %v\n", utils.FormatUintBinary(uint64(op), 3), op)
	}

	sb.WriteString("\n## Fields\n\n")
	sb.WriteString("  bits  0-2   operation\n")
	sb.WriteString("  bits  4-6   result operation (bit 4: branch condition, bit 5: branch annul)\n")
	sb.WriteString("  bit   7     exit flag\n")
	sb.WriteString("  bits  8-10  dst register\n")
	sb.WriteString("  bits 11-13  src_a register\n")
	sb.WriteString("  bits 14-16  src_b register\n")
	sb.WriteString("  bits 14-31  signed immediate / branch displacement (words)\n")
	sb.WriteString("  bits 17-21  alu sub-operation / bitfield source bit\n")
	sb.WriteString("  bits 22-26  bitfield size\n")
	sb.WriteString("  bits 27-31  bitfield destination bit\n")

	return sb.String()
}
