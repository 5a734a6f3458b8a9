package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/ui"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named server remotes",
	GroupID: "system",
	// Only the local remotes file is touched; skip store setup.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

// editRemotes loads the remotes file, applies fn and saves the result.
func editRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return saveRemotesConfig(cfg)
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <http-url>",
	Short: "Add or update a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: args[1]}
		r.GRPCAddr, _ = cmd.Flags().GetString("grpc")
		r.Token, _ = cmd.Flags().GetString("token")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		use, _ := cmd.Flags().GetBool("use")

		err := editRemotes(func(cfg *RemotesConfig) error {
			cfg.Remotes[name] = r
			if use {
				return cfg.Use(name)
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %s -> %s\n", ui.RenderAccent(name), r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a named remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(cfg *RemotesConfig) error { return cfg.Remove(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed remote %s\n", args[0])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(cfg *RemotesConfig) error { return cfg.Use(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "using remote %s\n", ui.RenderAccent(args[0]))
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured remotes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), maskedRemotes(cfg))
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("no remotes configured"))
			return nil
		}
		return printRemotes(cmd.OutOrStdout(), cfg)
	},
}

// connection is the effective server settings after env overrides.
type connection struct {
	Transport string `json:"transport"`
	URL       string `json:"url"`
	GRPCAddr  string `json:"grpc_addr"`
	NATSURL   string `json:"nats_url,omitempty"`
	Token     string `json:"token,omitempty"`
}

var remoteShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the server settings commands will use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := connection{
			Transport: defaultTransport(),
			URL:       defaultHTTPURL(),
			GRPCAddr:  defaultServer(),
			NATSURL:   currentRemote().NATSURL,
			Token:     maskToken(defaultToken()),
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "transport\t%s\n", c.Transport)
		fmt.Fprintf(tw, "url\t%s\n", c.URL)
		fmt.Fprintf(tw, "grpc\t%s\n", c.GRPCAddr)
		fmt.Fprintf(tw, "nats\t%s\n", c.NATSURL)
		fmt.Fprintf(tw, "token\t%s\n", c.Token)
		return tw.Flush()
	},
}

// printRemotes writes one row per remote, starring the active one.
func printRemotes(w io.Writer, cfg RemotesConfig) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tURL\tGRPC\tNATS\tTOKEN")
	for _, name := range cfg.Names() {
		r := cfg.Remotes[name]
		marker := "  "
		if name == cfg.Active {
			marker = "* "
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n", marker, name, r.URL, r.GRPCAddr, r.NATSURL, maskToken(r.Token))
	}
	return tw.Flush()
}

// maskedRemotes copies cfg with every token masked.
func maskedRemotes(cfg RemotesConfig) RemotesConfig {
	out := RemotesConfig{Active: cfg.Active, Remotes: make(map[string]Remote, len(cfg.Remotes))}
	for name, r := range cfg.Remotes {
		r.Token = maskToken(r.Token)
		out.Remotes[name] = r
	}
	return out
}

// maskToken keeps the first eight characters of a token.
func maskToken(token string) string {
	if len(token) > 8 {
		return token[:8] + "..."
	}
	return token
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address of the server")
	remoteAddCmd.Flags().String("token", "", "bearer token")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for watch")
	remoteAddCmd.Flags().Bool("use", false, "make the new remote active")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteUseCmd, remoteListCmd, remoteShowCmd)
}
