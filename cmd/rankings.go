package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shorttrack/shorttrack/internal/model"
)

var rankingsTimeframe string

var rankingsCmd = &cobra.Command{
	Use:   "rankings [country-code]",
	Short: "Print ranked short positions for a country, or globally",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := initService(st)

		var (
			companies []model.CompanyRanking
			managers  []model.ManagerRanking
			heading   string
		)
		if len(args) == 1 {
			country, err := st.GetCountryByCode(ctx, args[0])
			if err != nil {
				return err
			}
			out, err := svc.CountryAnalytics(ctx, country.ID)
			if err != nil {
				return err
			}
			if out.Message != "" {
				fmt.Println(out.Message)
				return nil
			}
			companies, managers = out.MostShortedCompanies, out.TopManagers
			heading = fmt.Sprintf("%s (%s positions as of %s)", country.Name, country.Code, out.LatestDate)
		} else {
			out, err := svc.GlobalRankings(ctx, rankingsTimeframe)
			if err != nil {
				return err
			}
			companies, managers = out.TopCompanies, out.TopManagers
			heading = fmt.Sprintf("Global (%s)", out.Timeframe)
		}

		fmt.Println(heading)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COMPANY\tTOTAL %\tAVG %\tPOSITIONS\tΔ WEEK")
		for _, c := range companies {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%d\t%+.2f\n",
				c.CompanyName, c.TotalShortExposure, c.AveragePositionSize, c.PositionCount, c.WeekDelta)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "MANAGER\tACTIVE\tEXPOSURE %")
		for _, m := range managers {
			fmt.Fprintf(w, "%s\t%d\t%.2f\n", m.Name, m.ActivePositions, m.TotalExposure)
		}
		return w.Flush()
	},
}

func init() {
	rankingsCmd.Flags().StringVar(&rankingsTimeframe, "timeframe", "", "global timeframe (1w, 1m, 3m, 6m, 1y)")
	rootCmd.AddCommand(rankingsCmd)
}
