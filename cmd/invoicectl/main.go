// Command invoicectl builds invoice drafts from the command line and submits
// them to the invoice API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"invoice-ledger/client"
	"invoice-ledger/ledger"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "invoicectl:", err)
		os.Exit(1)
	}
}

var itemFlags = []cli.Flag{
	&cli.StringSliceFlag{Name: "item", Aliases: []string{"i"}, Usage: `line item as "description:quantity:unit_price", repeatable`},
	&cli.StringFlag{Name: "tax-rate", Value: ledger.DefaultTaxRate.String(), Usage: "tax rate as a fraction"},
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:                      "invoicectl",
		Usage:                     "draft and submit invoices",
		Writer:                    out,
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", EnvVars: []string{"INVOICE_API_URL"}},
			&cli.StringFlag{Name: "token", EnvVars: []string{"INVOICE_TOKEN"}, Usage: "bearer token from login"},
			&cli.DurationFlag{Name: "timeout", Value: client.DefaultTimeout},
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"INVOICE_PASSWORD"}},
				},
				Action: register,
			},
			{
				Name:  "login",
				Usage: "print a token for INVOICE_TOKEN",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"INVOICE_PASSWORD"}},
				},
				Action: login,
			},
			{
				Name:   "totals",
				Usage:  "compute subtotal, tax and total without submitting",
				Flags:  itemFlags,
				Action: totals,
			},
			{
				Name:  "send",
				Usage: "validate a draft and submit it",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "client", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "issue-date", Usage: "YYYY-MM-DD, defaults to today"},
					&cli.StringFlag{Name: "due-date", Required: true, Usage: "YYYY-MM-DD"},
					&cli.IntFlag{Name: "retries", Value: 2, Usage: "resubmit attempts after a failure"},
				}, itemFlags...),
				Action: send,
			},
			{
				Name:  "list",
				Usage: "list invoices",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "search number, client or email"},
					&cli.StringFlag{Name: "status", Usage: "paid, pending or overdue"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "limit", Value: 10},
				},
				Action: list,
			},
		},
	}
}

func apiClient(cCtx *cli.Context) *client.Client {
	return client.New(cCtx.String("api-url")).
		SetToken(cCtx.String("token")).
		SetTimeout(cCtx.Duration("timeout"))
}

func register(cCtx *cli.Context) error {
	user, err := apiClient(cCtx).Register(cCtx.Context, cCtx.String("name"), cCtx.String("email"), cCtx.String("password"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "registered %s (%s)\n", user.Email, user.ID)
	return nil
}

func login(cCtx *cli.Context) error {
	session, err := apiClient(cCtx).Login(cCtx.Context, cCtx.String("email"), cCtx.String("password"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, session.Token)
	return nil
}

func draftFromFlags(cCtx *cli.Context) (*ledger.Draft, error) {
	rate, err := decimal.NewFromString(cCtx.String("tax-rate"))
	if err != nil {
		return nil, fmt.Errorf("bad --tax-rate: %w", err)
	}
	return buildDraft(cCtx.StringSlice("item"), rate)
}

func totals(cCtx *cli.Context) error {
	d, err := draftFromFlags(cCtx)
	if err != nil {
		return err
	}
	printTotals(cCtx.App.Writer, d)
	return nil
}

func printTotals(out io.Writer, d *ledger.Draft) {
	t := d.Totals()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, item := range d.Items() {
		fmt.Fprintf(w, "%s\t%s x %s\t%s\t\n", item.Description, item.Quantity, ledger.FormatWithSymbol(item.UnitPrice), ledger.FormatWithSymbol(item.LineTotal()))
	}
	fmt.Fprintf(w, "Subtotal\t\t%s\t\n", ledger.FormatWithSymbol(t.Subtotal))
	fmt.Fprintf(w, "Tax (%s%%)\t\t%s\t\n", d.TaxRate().Shift(2), ledger.FormatWithSymbol(t.TaxAmount))
	fmt.Fprintf(w, "Total\t\t%s\t\n", ledger.FormatWithSymbol(t.Total))
	_ = w.Flush()
}

func send(cCtx *cli.Context) error {
	d, err := draftFromFlags(cCtx)
	if err != nil {
		return err
	}

	issue := ledger.NewDate(time.Now())
	if s := cCtx.String("issue-date"); s != "" {
		if issue, err = ledger.ParseDate(s); err != nil {
			return err
		}
	}
	due, err := ledger.ParseDate(cCtx.String("due-date"))
	if err != nil {
		return err
	}
	header := ledger.Header{
		Client:    cCtx.String("client"),
		Email:     cCtx.String("email"),
		IssueDate: issue,
		DueDate:   due,
	}

	receipt, err := submitWithRetry(cCtx.Context, d, apiClient(cCtx), header, cCtx.Int("retries"))
	if err != nil {
		return err
	}
	printTotals(cCtx.App.Writer, d)
	fmt.Fprintf(cCtx.App.Writer, "submitted %s (%s) total %s\n", receipt.ID, receipt.Status, ledger.FormatWithSymbol(receipt.Total))
	return nil
}

// submitWithRetry resubmits the same draft, so every attempt carries the
// same idempotency key.
func submitWithRetry(ctx context.Context, d *ledger.Draft, s ledger.Submitter, h ledger.Header, retries int) (*ledger.Receipt, error) {
	for attempt := 0; ; attempt++ {
		receipt, err := d.Submit(ctx, s, h)
		if err == nil {
			return receipt, nil
		}
		var subErr *ledger.SubmissionError
		if !errors.As(err, &subErr) || !subErr.Retryable() || attempt >= retries {
			return nil, err
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
}

func list(cCtx *cli.Context) error {
	opts := client.ListOptions{
		Query: cCtx.String("q"),
		Page:  cCtx.Int("page"),
		Limit: cCtx.Int("limit"),
	}
	if s := cCtx.String("status"); s != "" {
		status, err := ledger.ParseStatus(s)
		if err != nil {
			return err
		}
		opts.Status = &status
	}

	page, err := apiClient(cCtx).ListInvoices(cCtx.Context, opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cCtx.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tCLIENT\tDUE\tTOTAL\tSTATUS")
	for _, inv := range page.Invoices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inv.ID, inv.Client, inv.DueDate, ledger.FormatWithSymbol(inv.Total), inv.Appearance.Label)
	}
	_ = w.Flush()
	fmt.Fprintf(cCtx.App.Writer, "page %d, %d of %d invoices\n", page.Page, len(page.Invoices), page.Total)
	return nil
}
