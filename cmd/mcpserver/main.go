package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/richard-senior/mcp/internal/config"
	"github.com/richard-senior/mcp/internal/logger"
)

// Exit codes per the CLI surface: 0 clean shutdown, 1 fatal startup error,
// 2 invalid configuration.
const (
	exitOK                = 0
	exitFatalStartupError = 1
	exitInvalidConfig     = 2
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "mcpserver",
	Short: "Reference MCP server over stdio, HTTP+SSE or streamable HTTP",
}

func main() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		applyConfig(cfg)
	}

	rootCmd.AddCommand(newStdioCmd(), newSSECmd(), newHTTPCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatalStartupError)
	}
	os.Exit(exitOK)
}

func exitWithError(cmd *cobra.Command, code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Error(msg)
	fmt.Fprintln(cmd.ErrOrStderr(), msg)
	os.Exit(code)
}
