package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	lendsdk "crosslend/sdk/lending"
)

type apiFlags struct {
	endpoint string
	token    string
	timeout  time.Duration
}

func (a *apiFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&a.endpoint, "endpoint", envOr("LEND_ENDPOINT", "http://127.0.0.1:9444"), "lendingd base url")
	fs.StringVar(&a.token, "token", os.Getenv("LEND_TOKEN"), "bearer token")
	fs.DurationVar(&a.timeout, "timeout", 15*time.Second, "request timeout")
}

func (a *apiFlags) client() (*lendsdk.Client, context.Context, context.CancelFunc, error) {
	client, err := lendsdk.New(a.endpoint, a.token)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	return client, ctx, cancel, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runLoan(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("loan", stderr)
	var api apiFlags
	api.register(fs)
	var borrower, loanID string
	var withHealth bool
	fs.StringVar(&borrower, "borrower", "", "borrower address (default: token subject)")
	fs.StringVar(&loanID, "id", "", "loan id")
	fs.BoolVar(&withHealth, "health", false, "recompute the current health ratio")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if loanID == "" {
		return fail(stderr, "--id is required")
	}
	client, ctx, cancel, err := api.client()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer cancel()
	loan, err := client.LoanOffer(ctx, borrower, loanID)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	if withHealth && loan.Status == "active" {
		ratio, err := client.HealthRatio(ctx, borrower, loanID)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		loan.HealthRatioBps = ratio
	}
	return printJSON(stdout, loan)
}

func runPushPrice(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("push-price", stderr)
	var api apiFlags
	api.register(fs)
	var feed, rate, confidence string
	fs.StringVar(&feed, "feed", "", "price feed id")
	fs.StringVar(&rate, "rate", "", "decimal price")
	fs.StringVar(&confidence, "confidence", "", "optional confidence half-width")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if feed == "" || rate == "" {
		return fail(stderr, "--feed and --rate are required")
	}
	client, ctx, cancel, err := api.client()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer cancel()
	if err := client.PushPrice(ctx, feed, rate, confidence); err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintf(stdout, "%s = %s\n", feed, rate)
	return 0
}

func runEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	var api apiFlags
	api.register(fs)
	var filter lendsdk.EventFilter
	fs.StringVar(&filter.Type, "type", "", "event type")
	fs.StringVar(&filter.LoanID, "loan", "", "loan id")
	fs.StringVar(&filter.OfferID, "offer", "", "lend offer id")
	fs.IntVar(&filter.Limit, "limit", 50, "maximum events")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	client, ctx, cancel, err := api.client()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer cancel()
	evts, err := client.Events(ctx, filter)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	return printJSON(stdout, evts)
}
