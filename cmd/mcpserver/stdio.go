package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/dispatcher"
	"github.com/richard-senior/mcp/pkg/protocol"
	"github.com/richard-senior/mcp/pkg/session"
	"github.com/richard-senior/mcp/pkg/transport"
)

func newStdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve one session over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd)
		},
	}
}

func runStdio(cmd *cobra.Command) error {
	tr := transport.NewStdio(os.Stdin, os.Stdout)
	sessions := session.NewStore()
	sess := sessions.Create()
	tr.BindSession(sess.ID())

	var d *dispatcher.Dispatcher
	reg, promptsReg, err := buildRegistry(func() {
		d.BroadcastNotification(string(protocol.NotificationPromptsListChanged))
	})
	if err != nil {
		exitWithError(cmd, exitFatalStartupError, "mcpserver stdio: %v", err)
		return nil
	}
	defer promptsReg.Close()

	d = dispatcher.New(reg, sessions, tr)

	logger.Info("mcpserver: serving stdio session", sess.ID())
	return tr.Serve(context.Background(), d.Handle)
}
