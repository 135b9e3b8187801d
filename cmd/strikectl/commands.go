package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/punchamoorthee/lightningpay/internal/logging"
	"github.com/punchamoorthee/lightningpay/internal/service"
	"github.com/punchamoorthee/lightningpay/internal/store"
	"github.com/punchamoorthee/lightningpay/internal/strike"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func receiptsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "receipts [requestId]",
		Short: "List receives recorded against a receive request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			receipts, err := client.ListReceipts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), receipts)
			}
			printReceipts(cmd.OutOrStdout(), domain.NewStateSet(g.cfg.SettledStates), receipts)
			return nil
		},
	}
}

func printReceipts(w io.Writer, states domain.StateSet, receipts []domain.Receipt) {
	if len(receipts) == 0 {
		fmt.Fprintln(w, "No receives.")
		return
	}
	fmt.Fprintf(w, "%-38s %-12s %-8s %s\n", "RECEIVE", "STATE", "CLASS", "AMOUNT")
	for _, r := range receipts {
		amount := "-"
		if r.AmountReceived != nil {
			amount = r.AmountReceived.String()
		}
		fmt.Fprintf(w, "%-38s %-12s %-8s %s\n", r.ID, r.State, states.Normalize(r.State), amount)
	}
	if states.AnySettled(receipts) {
		fmt.Fprintln(w, "\nSettled.")
	}
}

func requestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "request [requestId]",
		Short: "Show a receive request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			req, err := client.GetPaymentRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRequest(cmd.OutOrStdout(), g.asJSON, req)
		},
	}
}

func createCmd(g *globals) *cobra.Command {
	var (
		amount      string
		currency    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a new bolt11 receive request",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil || !value.IsPositive() {
				return fmt.Errorf("invalid --amount %q", amount)
			}
			client, err := g.client()
			if err != nil {
				return err
			}
			req, err := client.CreatePaymentRequest(cmd.Context(), strike.CreateParams{
				Amount:         value,
				Currency:       strings.ToUpper(currency),
				Description:    description,
				TargetCurrency: g.cfg.TargetCurrency,
				ExpirySeconds:  int(g.cfg.RequestExpiry / time.Second),
			})
			if err != nil {
				return err
			}
			return printRequest(cmd.OutOrStdout(), g.asJSON, req)
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount to request")
	cmd.Flags().StringVarP(&currency, "currency", "c", "USD", "Currency of the amount")
	cmd.Flags().StringVarP(&description, "description", "d", "strikectl test invoice", "Invoice description")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func printRequest(w io.Writer, asJSON bool, req *domain.PaymentRequest) error {
	if asJSON {
		return writeJSON(w, req)
	}
	fmt.Fprintf(w, "Request:    %s\n", req.ID)
	fmt.Fprintf(w, "Amount:     %s\n", req.RequestedAmount)
	fmt.Fprintf(w, "Settles:    %s\n", req.SettlementAmount)
	fmt.Fprintf(w, "Expires:    %s\n", req.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Invoice:    %s\n", req.Invoice)
	return nil
}

// checkCmd runs a poll-style reconcile for an order against the configured
// store, for orders whose payer closed the checkout page.
func checkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check [orderId]",
		Short: "Reconcile an order against Strike",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			client, err := g.client()
			if err != nil {
				return err
			}

			orders, err := store.Open(cmd.Context(), g.cfg.StoreDriver, g.cfg.DBSource)
			if err != nil {
				return err
			}
			defer orders.Close()

			engine := service.NewEngine(orders, client, service.Options{
				SettledStates: g.cfg.SettledStates,
				APITimeout:    g.cfg.StrikeTimeout,
				StoreTimeout:  g.cfg.StoreTimeout,
				Logger:        logging.NewJSONLogger(cmd.ErrOrStderr()),
			})
			out := engine.Reconcile(cmd.Context(), id, service.Trigger{Source: service.SourcePoll})

			if g.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"order_id": id,
					"outcome":  out.Kind,
					"detail":   out.Detail,
					"states":   out.States(),
					"expired":  out.Expired,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %d: %s\n", id, out.Kind)
			if out.Detail != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", out.Detail)
			}
			if len(out.Receipts) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  states: %s\n", strings.Join(out.States(), ", "))
			}
			if out.Expired {
				fmt.Fprintln(cmd.OutOrStdout(), "  request expired")
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
