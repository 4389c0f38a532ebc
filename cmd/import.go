package main

import (
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shorttrack/shorttrack/internal/model"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import disclosure records from CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()

		data, err := os.ReadFile(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "read csv")
		}

		var records []model.DisclosureRecord
		if err := csvutil.Unmarshal(data, &records); err != nil {
			return eris.Wrap(err, "parse csv")
		}
		if len(records) == 0 {
			return eris.New("csv contains no records")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		inserted, err := st.ImportDisclosures(ctx, records)
		if err != nil {
			return eris.Wrap(err, "import disclosures")
		}

		zap.L().Info("import complete",
			zap.Int64("inserted", inserted),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
