package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/export"
	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/store"
)

var (
	outFlag    string
	statusFlag string
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export orders in a date window as CSV",
	Example: `  zalldi export --from 2026-10-01 --to 2026-10-08 --status delivered -o orders.csv`,
	RunE:    runExport,
}

func init() {
	addWindowFlags(exportCmd)
	exportCmd.Flags().StringVarP(&outFlag, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&statusFlag, "status", "", "comma-separated statuses to include")
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	loc := cfg.Location()
	from, to, err := window(loc)
	if err != nil {
		return err
	}
	f := store.OrderFilter{From: from, To: to}
	if statusFlag != "" {
		for _, s := range strings.Split(statusFlag, ",") {
			status := model.OrderStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", s)
			}
			f.Statuses = append(f.Statuses, status)
		}
	}

	orders, err := a.orders.List(cmd.Context(), f)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outFlag != "" {
		var file *os.File
		file, err = os.Create(filepath.Clean(outFlag))
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = file
	}

	if err := export.WriteCSV(w, export.OrderColumns, export.OrderRows(orders, loc)); err != nil {
		return err
	}
	logger.Info("orders exported", zap.Int("count", len(orders)), zap.String("output", outFlag))
	return nil
}
