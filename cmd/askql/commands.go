package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cortexai/askql/internal/config"
	"github.com/cortexai/askql/internal/handler"
	"github.com/cortexai/askql/internal/security"
	"github.com/cortexai/askql/internal/server"
)

var (
	cfg *config.Config

	configFlag      string
	hostFlag        string
	portFlag        int
	sessionFlag     string
	interactiveFlag bool
	jsonFlag        bool

	rootCmd = &cobra.Command{
		Use:           "askql",
		Short:         "Answer natural-language questions with guarded, read-only SQL",
		Version:       handler.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFlag != "" {
				if err := os.Setenv("ASKQL_CONFIG", configFlag); err != nil {
					return err
				}
			}
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if hostFlag != "" {
				cfg.Host = hostFlag
			}
			if portFlag != 0 {
				cfg.Port = portFlag
			}
			setupLogging(cfg)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question once, or start an interactive session with -i",
		RunE:  runAsk, // cmd_ask.go
	}

	validateCmd = &cobra.Command{
		Use:   "validate [sql]",
		Short: "Run a SQL statement through the guardrails without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "JSON config file (overrides ASKQL_CONFIG)")
	serveCmd.Flags().StringVar(&hostFlag, "host", "", "listen host")
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "listen port")
	askCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "session id to continue (a new one is generated when empty)")
	askCmd.Flags().BoolVarP(&interactiveFlag, "interactive", "i", false, "read questions from stdin until EOF")
	askCmd.Flags().BoolVar(&jsonFlag, "json", false, "print responses as JSON")
	validateCmd.Flags().BoolVar(&jsonFlag, "json", false, "print the verdict as JSON")

	rootCmd.AddCommand(serveCmd, askCmd, validateCmd)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	srv, err := server.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}

func runValidate(cmd *cobra.Command, args []string) error {
	verdict := security.NewSQLValidator().Validate(strings.Join(args, " "))
	resp := handler.VerdictResponse(verdict)
	if jsonFlag {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "verdict: %s\n", resp.Verdict)
	switch {
	case resp.SQL != "":
		fmt.Fprintf(out, "sql:     %s\n", resp.SQL)
	case resp.Reason != "":
		fmt.Fprintf(out, "reason:  %s\n", resp.Reason)
	case resp.Prompt != "":
		fmt.Fprintf(out, "prompt:  %s\n", resp.Prompt)
	}
	for _, w := range resp.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}
