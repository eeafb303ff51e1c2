// Command schedctl operates a running standing order service over gRPC.
//
// Usage:
//
//	schedctl [-addr host:port] [-token t] <command> [flags]
//
// Commands: run, create, get, update, cancel, list, ledger, notifications, read
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	grpcadapter "github.com/simaogato/standing-orders/internal/adapter/grpc"
)

const callTimeout = 2 * time.Minute

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "schedctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("schedctl", flag.ContinueOnError)
	addr := global.String("addr", envOr("SCHEDCTL_ADDR", "localhost:8080"), "gRPC address of the service")
	token := global.String("token", envOr("API_TOKEN", "dev-token"), "API token")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		return fmt.Errorf("missing command: run, create, get, update, cancel, list, ledger, notifications, read")
	}

	client, err := grpcadapter.Dial(*addr, *token)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", *addr, err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	return dispatch(ctx, client, global.Arg(0), global.Args()[1:], out)
}

func dispatch(ctx context.Context, client *grpcadapter.Client, command string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)

	switch command {
	case "run":
		asOf := fs.String("as-of", "", "calendar date to run (YYYY-MM-DD), today when empty")
		if err := fs.Parse(args); err != nil {
			return err
		}
		report, err := client.ExecuteDueNow(ctx, *asOf)
		if err != nil {
			return err
		}
		renderReport(out, report)

	case "create":
		source := fs.String("source", "", "source account id")
		target := fs.String("target", "", "target account number")
		amount := fs.String("amount", "", "amount per occurrence")
		start := fs.String("start", "", "first date (YYYY-MM-DD)")
		end := fs.String("end", "", "last date (YYYY-MM-DD)")
		frequency := fs.String("frequency", "MONTHLY", "DAILY, WEEKLY or MONTHLY")
		description := fs.String("description", "", "description")
		if err := fs.Parse(args); err != nil {
			return err
		}
		order, err := client.CreateOrder(ctx, map[string]interface{}{
			"source_account_id":     *source,
			"target_account_number": *target,
			"amount":                *amount,
			"start_date":            *start,
			"end_date":              *end,
			"frequency":             *frequency,
			"description":           *description,
		})
		if err != nil {
			return err
		}
		renderRecord(out, orderColumns, order)

	case "get":
		id := fs.String("id", "", "order id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		order, err := client.GetOrder(ctx, *id)
		if err != nil {
			return err
		}
		renderRecord(out, orderColumns, order)

	case "update":
		id := fs.String("id", "", "order id")
		amount := fs.String("amount", "", "new amount")
		start := fs.String("start", "", "new first date (YYYY-MM-DD)")
		end := fs.String("end", "", "new last date (YYYY-MM-DD)")
		frequency := fs.String("frequency", "", "new frequency")
		description := fs.String("description", "", "new description")
		deactivate := fs.Bool("deactivate", false, "cancel the order")
		if err := fs.Parse(args); err != nil {
			return err
		}
		fields := map[string]interface{}{"order_id": *id}
		setIfNotEmpty(fields, "amount", *amount)
		setIfNotEmpty(fields, "start_date", *start)
		setIfNotEmpty(fields, "end_date", *end)
		setIfNotEmpty(fields, "frequency", *frequency)
		setIfNotEmpty(fields, "description", *description)
		if *deactivate {
			fields["active"] = false
		}
		order, err := client.UpdateOrder(ctx, fields)
		if err != nil {
			return err
		}
		renderRecord(out, orderColumns, order)

	case "cancel":
		id := fs.String("id", "", "order id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		canceled, err := client.CancelOrder(ctx, *id)
		if err != nil {
			return err
		}
		if canceled {
			fmt.Fprintln(out, "Order canceled.")
		} else {
			fmt.Fprintln(out, "Order was already inactive.")
		}

	case "list":
		source := fs.String("source", "", "source account id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		orders, err := client.ListOrders(ctx, *source)
		if err != nil {
			return err
		}
		renderRows(out, orderColumns, orders)

	case "ledger":
		account := fs.String("account", "", "account id")
		limit := fs.Int("limit", grpcadapter.DefaultLedgerLimit, "maximum number of entries")
		if err := fs.Parse(args); err != nil {
			return err
		}
		entries, err := client.ListLedger(ctx, *account, *limit)
		if err != nil {
			return err
		}
		renderRows(out, []string{"created_at", "direction", "amount", "balance_after", "order_id", "description"}, entries)

	case "notifications":
		recipient := fs.String("recipient", "", "recipient (account owner) id")
		markAll := fs.Bool("mark-all", false, "mark every listed notification as read")
		if err := fs.Parse(args); err != nil {
			return err
		}
		items, err := client.ListNotifications(ctx, *recipient)
		if err != nil {
			return err
		}
		renderRows(out, []string{"id", "kind", "scheduled_for", "message"}, items)
		if *markAll && len(items) > 0 {
			n, err := client.MarkAllNotificationsRead(ctx, *recipient)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d marked as read.\n", n)
		}

	case "read":
		id := fs.String("id", "", "notification id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := client.MarkNotificationRead(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintln(out, "Notification marked as read.")

	default:
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}

func setIfNotEmpty(fields map[string]interface{}, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
