package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iho/cashbook/internal/adapter/http/dto"
	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/infrastructure/auth"
)

const transactionsPath = "/api/v1/ledger/transactions"

type options struct {
	baseURL string
	timeout time.Duration
	token   string
	retries uint64
	output  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "cashbook-cli",
		Short:         "Cashbook CLI tool",
		Long:          `A command line interface for interacting with the Cashbook API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", envOr("CASHBOOK_URL", "http://localhost:8080"), "Base URL of the Cashbook API")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-attempt request timeout")
	flags.StringVar(&opts.token, "token", os.Getenv("CASHBOOK_TOKEN"), "Bearer token for mutating requests")
	flags.Uint64Var(&opts.retries, "retries", 3, "Retries on transport errors and 5xx responses")
	flags.StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")

	rootCmd.AddCommand(
		movementCmd(opts, domain.MovementTypeDeposit),
		movementCmd(opts, domain.MovementTypeWithdraw),
		balanceCmd(opts),
		movementsCmd(opts),
		consistencyCmd(opts),
		tokenCmd(),
	)

	return rootCmd
}

func (o *options) client() *apiClient {
	return newAPIClient(o.baseURL, o.token, o.timeout, o.retries)
}

func movementCmd(opts *options, kind domain.MovementType) *cobra.Command {
	var idempotencyKey string

	use := "deposit"
	short := "Deposit an amount into the cashbook"
	if kind == domain.MovementTypeWithdraw {
		use = "withdraw"
		short = "Withdraw an amount from the cashbook"
	}

	cmd := &cobra.Command{
		Use:   use + " AMOUNT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := dto.ParseAmountText(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			if !amount.IsPositive() {
				return fmt.Errorf("invalid amount %q: %w", args[0], domain.ErrNonPositiveAmount)
			}

			raw, err := amount.MarshalJSON()
			if err != nil {
				return err
			}

			key := idempotencyKey
			if key == "" {
				key = uuid.NewString()
			}

			typ := string(kind)
			req := dto.CreateMovementRequest{Type: &typ, Amount: raw}

			var movement dto.MovementResponse
			if err := opts.client().post(cmd.Context(), transactionsPath, key, req, &movement); err != nil {
				return err
			}

			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), movement)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s (id %s)\n", movement.Type, movement.Amount, movement.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key (generated when empty)")
	return cmd
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var balance dto.BalanceResponse
			if err := opts.client().get(cmd.Context(), "/api/v1/ledger/balance", &balance); err != nil {
				return err
			}

			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), balance)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Balance: %s\n", balance.Balance)
			return nil
		},
	}
}

func movementsCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "movements",
		Aliases: []string{"transactions"},
		Short:   "List movements, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var movements []dto.MovementResponse
			if err := opts.client().get(cmd.Context(), transactionsPath, &movements); err != nil {
				return err
			}

			if limit > 0 && len(movements) > limit {
				movements = movements[:limit]
			}

			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), movements)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tAMOUNT\tCREATED AT")
			for _, m := range movements {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Type, m.Amount, m.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many movements (0 for all)")
	return cmd
}

func consistencyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Replay the history and check that the balance never went negative",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.ConsistencyResponse
			err := opts.client().get(cmd.Context(), "/api/v1/ledger/consistency", &report)
			if apiErr, ok := asAPIError(err, http.StatusConflict); ok {
				if decodeErr := json.Unmarshal(apiErr.Body, &report); decodeErr != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.output == "json" {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				verdict := "PASSED"
				if !report.Consistent {
					verdict = "FAILED"
				}
				fmt.Fprintf(out, "Consistency check %s\n", verdict)
				fmt.Fprintf(out, "Movements:      %d\n", report.Movements)
				fmt.Fprintf(out, "Deposits:       %s\n", report.Deposits)
				fmt.Fprintf(out, "Withdrawals:    %s\n", report.Withdrawals)
				fmt.Fprintf(out, "Balance:        %s\n", report.Balance)
				fmt.Fprintf(out, "Lowest balance: %s\n", report.LowestBalance)
			}

			if !report.Consistent {
				return fmt.Errorf("ledger is inconsistent")
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret shared with the server")
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
