package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/poller"
)

// exitError carries a process exit code for non-paid terminal outcomes
type exitError struct {
	outcome core.Outcome
}

func (e exitError) Error() string { return fmt.Sprintf("payment %s", e.outcome) }

var outcomeExitCodes = map[core.Outcome]int{
	core.OutcomeDenied:   2,
	core.OutcomeExpired:  3,
	core.OutcomeCanceled: 4,
	core.OutcomeRefunded: 5,
}

// exitCode maps err to the process exit status; usage and transport errors exit 1
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit exitError
	if errors.As(err, &exit) {
		if code, ok := outcomeExitCodes[exit.outcome]; ok {
			return code
		}
	}
	return 1
}

func source(cmd *cobra.Command) *poller.HTTPSource {
	api, _ := cmd.Flags().GetString("api")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return poller.NewHTTPSource(api, timeout, nil)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printConfirmation(w io.Writer, c *core.PaymentConfirmation) {
	fmt.Fprintf(w, "%-12s %s\n", "External ID:", c.ExternalID)
	if c.InvoiceID != "" {
		fmt.Fprintf(w, "%-12s %s\n", "Invoice ID:", c.InvoiceID)
	}
	fmt.Fprintf(w, "%-12s %s\n", "Gateway:", c.Gateway)
	fmt.Fprintf(w, "%-12s %d %s\n", "Status:", c.StatusCode, c.StatusName)
	fmt.Fprintf(w, "%-12s %s\n", "Outcome:", c.Outcome())
	fmt.Fprintf(w, "%-12s %s\n", "Amount:", c.Amount.StringFixed(2))
	fmt.Fprintf(w, "%-12s %s\n", "Received:", c.ReceivedAt.Format(time.RFC3339))
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [id]",
		Short: "Show the stored confirmation for an external ID, invoice ID or token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := source(cmd).Fetch(cmd.Context(), args[0])
			if errors.Is(err, core.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No confirmation yet (pending)")
				return nil
			}
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), c)
			}
			printConfirmation(cmd.OutOrStdout(), c)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func waitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait [id]",
		Short: "Poll until the payment is paid, denied, expired, canceled or refunded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			maxInterval, _ := cmd.Flags().GetDuration("max-interval")
			maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
			maxElapsed, _ := cmd.Flags().GetDuration("max-elapsed")
			verbose, _ := cmd.Flags().GetBool("verbose")

			policy := poller.Fixed(interval)
			if maxInterval > interval {
				policy = poller.Exponential(interval, maxInterval)
			}
			policy = policy.WithMaxAttempts(maxAttempts).WithMaxElapsed(maxElapsed)

			logger := zap.NewNop()
			if verbose {
				logger, _ = zap.NewDevelopment()
			}

			out := cmd.OutOrStdout()
			p := poller.New(source(cmd), policy, poller.Callbacks{
				OnUpdate: func(c *core.PaymentConfirmation) {
					if verbose {
						fmt.Fprintf(out, "status %d %s\n", c.StatusCode, c.StatusName)
					}
				},
			}, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := p.Run(ctx, args[0])
			if err != nil {
				return err
			}
			printConfirmation(out, c)
			if c.Outcome() != core.OutcomePaid {
				return exitError{outcome: c.Outcome()}
			}
			return nil
		},
	}
	cmd.Flags().Duration("interval", 3*time.Second, "Polling interval")
	cmd.Flags().Duration("max-interval", 0, "Enable exponential backoff up to this interval")
	cmd.Flags().Int("max-attempts", 0, "Stop after this many requests (0 = unlimited)")
	cmd.Flags().Duration("max-elapsed", 15*time.Minute, "Stop after this much time (0 = unlimited)")
	cmd.Flags().BoolP("verbose", "v", false, "Print every status update")
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the most recent webhook events",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			events, err := source(cmd).RecentEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), events)
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events")
				return nil
			}
			for _, e := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-20s %-24s %d %s\n",
					e.ReceivedAt.Format(time.RFC3339), e.Gateway, e.EventType, e.ExternalID, e.StatusCode, e.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum events")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}
