package tools

import (
	"github.com/spf13/cobra"
)

// ToolsCmd groups miscellaneous mme tools
var ToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "mme miscellaneous tools",
}
