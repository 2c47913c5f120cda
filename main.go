package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ashare-data/kline/kline"
	"github.com/ashare-data/kline/kline/backfill"
	"github.com/ashare-data/kline/kline/common"
)

func main() {
	var (
		flagStartDate       = flag.String("start-date", "", "YYYY-MM-DD start of the import window; empty derives it from each symbol's listing date")
		flagEndDate         = flag.String("end-date", "", "YYYY-MM-DD end of the import window; empty means today")
		flagDelay           = flag.Float64("delay", 0.5, "pacing delay between symbols, in seconds")
		flagMaxStocks       = flag.Int("max-stocks", 0, "process at most this many symbols; 0 means all")
		flagReloginInterval = flag.Int("relogin-interval", 300, "re-login to the bulk vendor every N symbols")
		flagStartIndex      = flag.Int("start-index", 0, "0-based symbol index to resume from")
		flagDebug           = flag.Bool("debug", false, "verbose logging")
	)

	flag.Parse()

	opts := backfill.Options{
		Delay:           time.Duration(*flagDelay * float64(time.Second)),
		MaxStocks:       *flagMaxStocks,
		ReloginInterval: *flagReloginInterval,
		StartIndex:      *flagStartIndex,
	}

	if *flagStartDate != "" {
		startDate, err := common.ParseDate(*flagStartDate)
		if err != nil {
			exit(fmt.Sprintf("invalid start-date '%v': %v.", *flagStartDate, err), true)
		}
		opts.StartDate = startDate
	}
	if *flagEndDate != "" {
		endDate, err := common.ParseDate(*flagEndDate)
		if err != nil {
			exit(fmt.Sprintf("invalid end-date '%v': %v.", *flagEndDate, err), true)
		}
		opts.EndDate = endDate
	}
	if *flagDelay < 0 {
		exit("Delay is negative.", true)
	}
	if *flagReloginInterval <= 0 {
		exit("Relogin interval is negative or zero.", true)
	}
	if *flagStartIndex < 0 {
		exit("Start index is negative.", true)
	}

	ctx := context.Background()

	serviceOpts := []func(*kline.Service){}
	if *flagDebug {
		serviceOpts = append(serviceOpts, kline.WithDebug())
	}
	svc, err := kline.NewService(ctx, serviceOpts...)
	if err != nil {
		exit(fmt.Sprintf("error building service: %v", err), false)
	}
	defer svc.Close(ctx)

	summary, err := svc.Backfill(ctx, opts)
	if err != nil {
		exit(fmt.Sprintf("batch import aborted: %v", err), false)
	}

	fmt.Printf("imported %v/%v symbols in %v\n", summary.Succeeded, summary.Total, summary.Elapsed.Round(time.Second))
	for _, f := range summary.Failures {
		fmt.Printf("failed: %v (%v): %v\n", f.Symbol, f.Name, f.Err)
	}
	// per-symbol failures are part of normal operation, always exit 0
}

func exit(s string, showUsage bool) {
	log.Println(s)
	if showUsage {
		flag.Usage()
	}
	os.Exit(1)
}
