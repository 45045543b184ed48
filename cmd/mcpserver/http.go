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

func newHTTPCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve over the single-endpoint streamable HTTP transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHTTP(cmd, host, port)
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "host to bind")
	cmd.Flags().IntVar(&port, "port", 8080, "port to bind")
	return cmd
}

func runHTTP(cmd *cobra.Command, host string, port int) error {
	sessions := session.NewStore()
	streamable := transport.NewStreamable(sessions)

	var d *dispatcher.Dispatcher
	reg, promptsReg, err := buildRegistry(func() {
		d.BroadcastNotification(string(protocol.NotificationPromptsListChanged))
	})
	if err != nil {
		exitWithError(cmd, exitFatalStartupError, "mcpserver http: %v", err)
		return nil
	}
	defer promptsReg.Close()
	d = dispatcher.New(reg, sessions, streamable)

	mux := http.NewServeMux()
	addr := fmt.Sprintf("%s:%d", host, port)
	baseURL := "http://" + addr

	var mcpHandler http.Handler = streamable.Handler(d.Handle)

	if cfg.OAuthEnabled() {
		validator, jwks, verr := buildValidator(cfg)
		if verr != nil {
			exitWithError(cmd, exitInvalidConfig, "mcpserver http: building oauth validator: %v", verr)
			return nil
		}
		defer jwks.Close()

		disc := newDiscovery(cfg, baseURL)
		mux.HandleFunc("/.well-known/oauth-authorization-server", disc.HandleAuthorizationServerMetadata)
		mux.HandleFunc("/.well-known/oauth-protected-resource", disc.HandleProtectedResourceMetadata)
		mux.HandleFunc("/register", disc.HandleRegister)

		resourceMetadataURL := baseURL + "/.well-known/oauth-protected-resource"
		mcpHandler = requireBearerToken(validator, disc, resourceMetadataURL, mcpHandler)
	}

	mux.Handle("/mcp", mcpHandler)

	logger.Info("mcpserver: serving streamable HTTP on", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		exitWithError(cmd, exitFatalStartupError, "mcpserver http: %v", err)
	}
	return nil
}
