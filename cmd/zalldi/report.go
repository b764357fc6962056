package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vs-yayo-m/zalldi/internal/service"
)

var (
	fromFlag     string
	toFlag       string
	topFlag      int
	supplierFlag string
	customerFlag string
	customersN   int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the order summary for a date window as JSON",
	Example: `  zalldi report --from 2026-10-01 --to 2026-10-08
  zalldi report --from 2026-10-01 --supplier sup-12 --top 10`,
	RunE: runReport,
}

func init() {
	addWindowFlags(reportCmd)
	reportCmd.Flags().IntVar(&topFlag, "top", 0, "number of top products and customers (default from config)")
	reportCmd.Flags().StringVar(&supplierFlag, "supplier", "", "scope the report to one supplier")
	reportCmd.Flags().StringVar(&customerFlag, "customer", "", "scope the report to one customer")
	reportCmd.Flags().IntVar(&customersN, "total-customers", 0, "registered customer count, for the conversion rate")
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fromFlag, "from", "", "window start, YYYY-MM-DD or RFC3339 (default 7 days ago)")
	cmd.Flags().StringVar(&toFlag, "to", "", "window end, exclusive (default now)")
}

// window resolves --from/--to in the configured timezone.
func window(loc *time.Location) (time.Time, time.Time, error) {
	to := time.Now().In(loc)
	from := to.AddDate(0, 0, -7)
	var err error
	if fromFlag != "" {
		if from, err = parseDate(fromFlag, loc); err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if toFlag != "" {
		if to, err = parseDate(toFlag, loc); err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return from, to, nil
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, v, loc)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	from, to, err := window(cfg.Location())
	if err != nil {
		return err
	}
	rollup, err := a.reports.Summary(cmd.Context(), service.ReportRequest{
		From:           from,
		To:             to,
		TopN:           topFlag,
		TotalCustomers: customersN,
		SupplierID:     supplierFlag,
		CustomerID:     customerFlag,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rollup)
}
