package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/api"
	inframcp "github.com/felixgeelhaar/smartreviewer/internal/infrastructure/mcp"
)

var (
	mcpTransport string
	mcpAddr      string
	mcpOpenAPI   bool
	apiAddr      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the reviewer over MCP or a REST API",
}

var serveMCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the SmartReviewer MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		inframcp.Version = Version
		inframcp.BuildCommit = Commit
		inframcp.BuildDate = Date
		server := inframcp.NewServerWith(services)

		if mcpOpenAPI {
			doc, err := server.OpenAPI()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Serve(ctx, mcpTransport, mcpAddr)
	},
}

var serveAPICmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API with live progress streaming",
	Long: `Start the REST API. Set SMARTREVIEWER_API_TOKEN to require a bearer token
on every /api route.

  POST /api/v1/reviews            run a review
  GET  /api/v1/reviews[/:id]      stored reviews
  POST /api/v1/evaluations        run an evaluation
  GET  /api/v1/evaluations/:id    stored evaluation
  GET  /api/v1/checks?type=       check item catalogue
  GET  /api/v1/ws/progress        progress over websocket
  GET  /api/v1/events/progress    progress as server-sent events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = services.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var opts []api.Option
		if token := os.Getenv(api.EnvToken); token != "" {
			opts = append(opts, api.WithToken(token))
		}
		return api.NewServer(services, opts...).ListenAndServe(ctx, apiAddr)
	},
}

func init() {
	serveMCPCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to use (stdio, http, ws)")
	serveMCPCmd.Flags().StringVar(&mcpAddr, "addr", ":8080", "Address for http/ws transports")
	serveMCPCmd.Flags().BoolVar(&mcpOpenAPI, "openapi", false, "Print the OpenAPI description of the tools and exit")
	serveAPICmd.Flags().StringVar(&apiAddr, "addr", ":8090", "Listen address")
	serveCmd.AddCommand(serveMCPCmd, serveAPICmd)
	RootCmd.AddCommand(serveCmd)
}
