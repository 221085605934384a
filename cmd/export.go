package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benchradar/benchradar/internal/export"
	"github.com/benchradar/benchradar/internal/model"
	"github.com/benchradar/benchradar/internal/store"
)

var (
	exportFormat string
	exportOut    string
	exportStatus string
)

const exportPageSize = 500

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export benches as a spreadsheet or point shapefile",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := model.BenchStatus(exportStatus)
		if !status.Valid() {
			return eris.Errorf("unknown status %q", exportStatus)
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := fetchAll(cmd.Context(), st, status)
		if err != nil {
			return err
		}

		switch exportFormat {
		case "xlsx":
			err = export.WriteXLSX(exportOut, rows)
		case "shp":
			benches := make([]model.Bench, 0, len(rows))
			for _, r := range rows {
				benches = append(benches, r.Bench)
			}
			err = export.WriteShapefile(exportOut, benches)
		default:
			return eris.Errorf("unknown format %q (use xlsx or shp)", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("format", exportFormat),
			zap.String("status", exportStatus),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

// fetchAll pages through the bench table with the creation-time cursor
// until a short page signals the end.
func fetchAll(ctx context.Context, st store.Store, status model.BenchStatus) ([]model.AdminRow, error) {
	var all []model.AdminRow
	var before *time.Time
	for {
		page, err := st.ListBenches(ctx, store.BenchFilter{Status: status, Limit: exportPageSize, Before: before})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
		last := page[len(page)-1].CreatedAt
		before = &last
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx or shp")
	exportCmd.Flags().StringVar(&exportOut, "out", "benches.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportStatus, "status", "approved", "moderation status to export")
	rootCmd.AddCommand(exportCmd)
}
