package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/gpuemu/mme/pkg/hw/mme"
	"github.com/gpuemu/mme/pkg/hw/mme/session"
	"github.com/gpuemu/mme/pkg/utils"
)

var debugInvocation int

var debugCmd = &cobra.Command{
	Use:   "debug <session.yaml>",
	Short: "Single-step one invocation of a session interactively",
	Long: `Opens an interactive prompt over one invocation of the session (the first
one unless --invocation says otherwise) and executes it instruction by
instruction.

Commands: step [n], regs, sends, list, run, reset, help, quit.`,
	Args: cobra.ExactArgs(1),
	Run:  runDebug,
}

func init() {
	MacroCmd.AddCommand(debugCmd)
	debugCmd.Flags().IntVarP(&debugInvocation, "invocation", "i", 0,
		"index of the session invocation to debug")
}

// debugSession is the state of one debugging session: the macro being
// stepped, its parameters and the register file collecting its writes.
type debugSession struct {
	code   []uint32
	params []uint32
	// seed holds the session's initial engine register values; reset
	// rebuilds the register file from it.
	seed    map[session.Word]session.Word
	regs    *mme.RecordingRegisters
	stepper *mme.Stepper
	failed  bool
}

func runDebug(cmd *cobra.Command, args []string) {
	s, err := session.Load(args[0])
	if err != nil {
		colorError.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if debugInvocation < 0 || debugInvocation >= len(s.Invocations) {
		colorError.Fprintf(os.Stderr, "Error: session has %d invocations, cannot debug #%d\n",
			len(s.Invocations), debugInvocation)
		os.Exit(1)
	}
	inv := s.Invocations[debugInvocation]
	macro, _ := s.MacroByMethod(inv.Method)

	ds := &debugSession{
		code:   utils.Map(macro.Code, func(w session.Word) uint32 { return uint32(w) }),
		params: utils.Map(inv.Parameters, func(p session.Word) uint32 { return uint32(p) }),
		seed:   s.Registers,
	}

	if err := ds.reset(); err != nil {
		colorError.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Debugging %s(%v), %d words. Type 'help' for commands.\n",
		s.MacroName(inv.Method), inv.Parameters, len(ds.code))

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	line.SetCompleter(func(input string) []string {
		commands := []string{"step", "s", "regs", "r", "sends", "list", "l", "run", "c", "reset", "help", "h", "quit", "q"}
		var completions []string
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, strings.ToLower(input)) {
				completions = append(completions, cmd)
			}
		}
		return completions
	})

	historyFile := debugHistoryPath()
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt("(mme) ")
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if quit := ds.dispatch(input); quit {
			break
		}
	}

	if f, err := os.Create(historyFile); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

func debugHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mme_history"
	}
	return filepath.Join(home, ".mme_history")
}

func (ds *debugSession) reset() error {
	regs := mme.NewRecordingRegisters()
	for address, value := range ds.seed {
		regs.Seed(uint32(address), uint32(value))
	}

	stepper, err := mme.NewStepper(ds.code, regs, ds.params)
	if err != nil {
		return err
	}
	ds.regs = regs
	ds.stepper = stepper
	ds.failed = false
	return nil
}

// dispatch runs one debugger command. It returns true on quit.
func (ds *debugSession) dispatch(input string) bool {
	fields := strings.Fields(input)
	command, args := fields[0], fields[1:]

	switch command {
	case "step", "s":
		count := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				colorError.Printf("bad step count %q\n", args[0])
				return false
			}
			count = n
		}
		ds.step(count)

	case "regs", "r":
		ds.showRegisters()

	case "sends":
		if len(ds.regs.Writes) == 0 {
			fmt.Println("no register writes yet")
			return false
		}
		printWrites(ds.regs.Writes)

	case "list", "l":
		ds.list()

	case "run", "c":
		ds.run()

	case "reset":
		if err := ds.reset(); err != nil {
			colorError.Printf("%v\n", err)
			return false
		}
		colorSuccess.Println("invocation restarted")

	case "help", "h":
		fmt.Println(`step [n], s    execute the next n instructions (default 1)
regs, r        show the macro registers and method address
sends          show the register writes so far
list, l        disassemble the macro, marking the next instruction
run, c         run the invocation to completion
reset          restart the invocation from scratch
quit, q        leave the debugger`)

	case "quit", "q", "exit":
		return true

	default:
		colorError.Printf("unknown command %q, try 'help'\n", command)
	}

	return false
}

func (ds *debugSession) step(count int) {
	for i := 0; i < count; i++ {
		if ds.stepper.Done() || ds.failed {
			colorError.Println("the invocation has halted, use 'reset' to restart")
			return
		}

		op, err := ds.stepper.Current()
		if err == nil {
			printListingLine(mme.DisassembleWord(ds.stepper.PC(), op.Raw), true)
		}

		done, err := ds.stepper.Step()
		if err != nil {
			ds.failed = true
			colorError.Printf("%v\n", err)
			return
		}
		if done {
			if err := ds.stepper.Finish(); err != nil {
				ds.failed = true
				colorError.Printf("%v\n", err)
				return
			}
			colorSuccess.Printf("halted after %d steps, %d register writes\n",
				ds.stepper.Steps(), len(ds.regs.Writes))
			return
		}
	}
}

func (ds *debugSession) run() {
	for !ds.stepper.Done() && !ds.failed {
		ds.step(1)
	}
}

func (ds *debugSession) showRegisters() {
	for i := uint32(0); i < mme.NumRegisters; i++ {
		colorOperands.Printf("  r%d", i)
		colorValue.Printf(" = 0x%08X", ds.stepper.Register(i))
		if (i+1)%4 == 0 {
			fmt.Println()
		}
	}

	method := ds.stepper.MethodAddress()
	fmt.Printf("  method = 0x%03X (+%d)  pc = 0x%04X  params = %d/%d  steps = %d\n",
		method.Address(), method.Increment(),
		ds.stepper.PC(), ds.stepper.ParametersConsumed(), len(ds.params),
		ds.stepper.Steps())
}

func (ds *debugSession) list() {
	pc := ds.stepper.PC()
	for _, d := range mme.DisassembleProgram(ds.code) {
		printListingLine(d, d.Address == pc && !ds.stepper.Done())
	}
}
