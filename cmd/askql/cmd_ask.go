package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cortexai/askql/internal/models"
	"github.com/cortexai/askql/internal/server"
)

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && !interactiveFlag {
		return errors.New("a question is required unless --interactive is set")
	}

	components, err := server.NewComponents(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing components")
		}
	}()

	sessionID := sessionFlag
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	out := cmd.OutOrStdout()

	ask := func(q string) error {
		resp := components.Pipeline.Ask(cmd.Context(), sessionID, q)
		if jsonFlag {
			return printJSON(out, resp)
		}
		printResponse(out, resp)
		return nil
	}

	if question != "" {
		if err := ask(question); err != nil {
			return err
		}
	}
	if !interactiveFlag {
		return nil
	}

	fmt.Fprintf(out, "session %s (empty line or Ctrl-D to quit)\n", sessionID)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "exit" || line == "quit" {
			return nil
		}
		if err := ask(line); err != nil {
			return err
		}
		if cmd.Context().Err() != nil {
			return nil
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResponse(w io.Writer, resp *models.Response) {
	if resp.Answer != "" {
		fmt.Fprintln(w, resp.Answer)
	}
	if resp.Explanation != "" {
		fmt.Fprintln(w, resp.Explanation)
	}
	if resp.SQL != "" {
		fmt.Fprintf(w, "\n  %s\n", resp.SQL)
	}

	if len(resp.Columns) > 0 && len(resp.Rows) > 0 {
		fmt.Fprintln(w)
		table := tablewriter.NewWriter(w)
		table.SetAutoWrapText(false)
		table.SetAutoFormatHeaders(false)
		table.SetBorder(true)
		table.SetHeader(resp.Columns)
		for _, row := range resp.Rows {
			cells := make([]string, len(resp.Columns))
			for i, col := range resp.Columns {
				cells[i] = formatCell(row[col])
			}
			table.Append(cells)
		}
		table.Render()
	}

	for _, warning := range resp.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	fmt.Fprintf(w, "[route=%s confidence=%.1f]\n", resp.Route, resp.Confidence)
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return fmt.Sprintf("%.2f", v)
	case float32:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprint(v)
	}
}
