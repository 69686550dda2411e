package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/buildtall-systems/orderflow/internal/fsm"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/spf13/cobra"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Create orders and drive their lifecycle",
}

var orderCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an order in SUBMITTED",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		at := time.Now()
		if s, _ := cmd.Flags().GetString("at"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("--at must be RFC3339: %w", err)
			}
			at = t
		}

		return withService(cmd, func(ctx context.Context, svc *order.Service) error {
			o, err := svc.Create(ctx, at)
			if err != nil {
				return err
			}
			printOrder(cmd.OutOrStdout(), o)
			return nil
		})
	},
}

var orderPayCmd = &cobra.Command{
	Use:   "pay <id>",
	Short: "Record payment for an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		return withService(cmd, func(ctx context.Context, svc *order.Service) error {
			return printState(cmd.OutOrStdout(), args[0])(svc.Pay(ctx, args[0], token))
		})
	},
}

var orderFulfillCmd = &cobra.Command{
	Use:   "fulfill <id>",
	Short: "Fulfill a paid order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *order.Service) error {
			return printState(cmd.OutOrStdout(), args[0])(svc.Fulfill(ctx, args[0]))
		})
	},
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *order.Service) error {
			return printState(cmd.OutOrStdout(), args[0])(svc.Cancel(ctx, args[0]))
		})
	},
}

var orderShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *order.Service) error {
			o, err := svc.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			printOrder(cmd.OutOrStdout(), o)
			return nil
		})
	},
}

var orderEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "List events the order accepts in its current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *order.Service) error {
			events, err := svc.AvailableEvents(ctx, args[0])
			if err != nil {
				return err
			}
			for _, ev := range events {
				fmt.Fprintln(cmd.OutOrStdout(), ev)
			}
			return nil
		})
	},
}

var orderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent orders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withService(cmd, func(ctx context.Context, svc *order.Service) error {
			orders, err := svc.List(ctx, limit)
			if err != nil {
				return err
			}
			for i := range orders {
				printOrder(cmd.OutOrStdout(), &orders[i])
			}
			return nil
		})
	},
}

func init() {
	orderCreateCmd.Flags().String("at", "", "creation time (RFC3339, default now)")
	orderPayCmd.Flags().String("token", "", "payment confirmation number")
	orderListCmd.Flags().Int("limit", 20, "maximum orders to show (0 for all)")

	orderCmd.AddCommand(orderCreateCmd, orderPayCmd, orderFulfillCmd, orderCancelCmd,
		orderShowCmd, orderEventsCmd, orderListCmd)
	rootCmd.AddCommand(orderCmd)
}

func printOrder(w io.Writer, o *order.Order) {
	fmt.Fprintf(w, "%s\t%s\tv%d\tcreated %s\n",
		o.ID, o.State, o.Version, o.CreatedAt.UTC().Format(time.RFC3339))
}

func printState(w io.Writer, id string) func(fsm.State, error) error {
	return func(state fsm.State, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", id, state)
		return nil
	}
}
