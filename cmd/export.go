package main

import (
	"os"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shorttrack/shorttrack/internal/model"
	"github.com/shorttrack/shorttrack/internal/store"
)

var (
	exportCSVPath string
	exportCountry string
	exportSince   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export disclosure records to CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		ctx := cmd.Context()

		filter := store.ExportFilter{CountryCode: exportCountry}
		if exportSince != "" {
			since, err := time.Parse(model.ISODate, exportSince)
			if err != nil {
				return eris.Wrapf(err, "parse --since %q", exportSince)
			}
			filter.Since = &since
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ExportDisclosures(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "export disclosures")
		}

		data, err := csvutil.Marshal(records)
		if err != nil {
			return eris.Wrap(err, "encode csv")
		}
		if err := os.WriteFile(exportCSVPath, data, 0644); err != nil {
			return eris.Wrap(err, "write csv")
		}

		zap.L().Info("export complete",
			zap.Int("records", len(records)),
			zap.String("csv", exportCSVPath),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "output CSV path (required)")
	exportCmd.Flags().StringVar(&exportCountry, "country", "", "limit to one country code")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only records on or after this date (YYYY-MM-DD)")
	_ = exportCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(exportCmd)
}
