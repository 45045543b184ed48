package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/dispatcher"
	"github.com/richard-senior/mcp/pkg/protocol"
	"github.com/richard-senior/mcp/pkg/session"
	"github.com/richard-senior/mcp/pkg/transport"
)

func newSSECmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "sse",
		Short: "Serve over HTTP+SSE (GET /sse, POST /messages)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSSE(cmd, host, port)
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "host to bind")
	cmd.Flags().IntVar(&port, "port", 8080, "port to bind")
	return cmd
}

func runSSE(cmd *cobra.Command, host string, port int) error {
	sessions := session.NewStore()
	sse := transport.NewSSE(sessions, "/messages")

	var d *dispatcher.Dispatcher
	reg, promptsReg, err := buildRegistry(func() {
		d.BroadcastNotification(string(protocol.NotificationPromptsListChanged))
	})
	if err != nil {
		exitWithError(cmd, exitFatalStartupError, "mcpserver sse: %v", err)
		return nil
	}
	defer promptsReg.Close()
	d = dispatcher.New(reg, sessions, sse)

	mux := http.NewServeMux()
	addr := fmt.Sprintf("%s:%d", host, port)
	baseURL := "http://" + addr

	var sseHandler http.Handler = http.HandlerFunc(sse.HandleSSE)
	var messagesHandler http.Handler = sse.HandleMessages(d.Handle)

	if cfg.OAuthEnabled() {
		validator, jwks, verr := buildValidator(cfg)
		if verr != nil {
			exitWithError(cmd, exitInvalidConfig, "mcpserver sse: building oauth validator: %v", verr)
			return nil
		}
		defer jwks.Close()

		disc := newDiscovery(cfg, baseURL)
		mux.HandleFunc("/.well-known/oauth-authorization-server", disc.HandleAuthorizationServerMetadata)
		mux.HandleFunc("/.well-known/oauth-protected-resource", disc.HandleProtectedResourceMetadata)
		mux.HandleFunc("/register", disc.HandleRegister)

		resourceMetadataURL := baseURL + "/.well-known/oauth-protected-resource"
		sseHandler = requireBearerToken(validator, disc, resourceMetadataURL, sseHandler)
		messagesHandler = requireBearerToken(validator, disc, resourceMetadataURL, messagesHandler)
	}

	mux.Handle("/sse", sseHandler)
	mux.Handle("/messages", messagesHandler)

	logger.Info("mcpserver: serving HTTP+SSE on", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		exitWithError(cmd, exitFatalStartupError, "mcpserver sse: %v", err)
	}
	return nil
}
