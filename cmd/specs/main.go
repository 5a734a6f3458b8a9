package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/client"
	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/store"
	"github.com/alfredjeanlab/specs/internal/ui"
)

var (
	databaseURL string
	httpURL     string
	serverAddr  string
	transport   string
	authToken   string
	jsonOutput  bool

	// specsClient serves every command. syncClient serves the synchronization
	// commands and differs from specsClient only with --transport grpc.
	specsClient client.SpecsClient
	syncClient  client.SyncClient

	// localStore is set with --transport local.
	localStore store.Store
)

func defaultDatabaseURL() string {
	if s := os.Getenv("SPECS_DATABASE_URL"); s != "" {
		return s
	}
	return "sqlite://specs.db"
}

func defaultHTTPURL() string {
	if s := os.Getenv("SPECS_HTTP_URL"); s != "" {
		return s
	}
	if u := currentRemote().URL; u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("SPECS_SERVER"); s != "" {
		return s
	}
	if a := currentRemote().GRPCAddr; a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("SPECS_AUTH_TOKEN"); s != "" {
		return s
	}
	return currentRemote().Token
}

// defaultTransport talks to a server when one is configured and to a local
// database otherwise.
func defaultTransport() string {
	if s := os.Getenv("SPECS_TRANSPORT"); s != "" {
		return s
	}
	if os.Getenv("SPECS_HTTP_URL") != "" || currentRemote().URL != "" {
		return "http"
	}
	return "local"
}

var rootCmd = &cobra.Command{
	Use:           "specs <command>",
	Short:         "Manage specifications and synchronize their attribute values",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch transport {
		case "local":
			s, err := openStore(databaseURL)
			if err != nil {
				return err
			}
			localStore = s
			specsClient = client.NewLocalClient(engine.New(s, newLogger()), s)
			syncClient = specsClient
		case "http":
			specsClient = client.NewHTTPClient(httpURL, authToken)
			syncClient = specsClient
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr, authToken)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			specsClient = client.NewHTTPClient(httpURL, authToken)
			syncClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be local, http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeClients()
	},
}

func closeClients() {
	if syncClient != nil && syncClient != client.SyncClient(specsClient) {
		syncClient.Close()
	}
	if specsClient != nil {
		specsClient.Close()
	}
	specsClient, syncClient, localStore = nil, nil, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db", defaultDatabaseURL(), "database URL for the local transport")
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", defaultTransport(), "transport (local, http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for the server")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "values", Title: "Values:"},
		&cobra.Group{ID: "specs", Title: "Specifications:"},
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Values
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(attributesCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(facetsCmd)
	rootCmd.AddCommand(searchCmd)

	// Specifications
	rootCmd.AddCommand(specCmd)
	rootCmd.AddCommand(generateCmd)

	// Records
	rootCmd.AddCommand(typeCmd)
	rootCmd.AddCommand(recordCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
