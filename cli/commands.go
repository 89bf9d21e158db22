package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DeafMist/unicorn-radar/internal/analytics"
	"github.com/DeafMist/unicorn-radar/internal/charts"
	"github.com/DeafMist/unicorn-radar/internal/dataset"
	"github.com/DeafMist/unicorn-radar/internal/export"
	"github.com/DeafMist/unicorn-radar/internal/logger"
	"github.com/DeafMist/unicorn-radar/internal/models"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dataset   string
	countries []string
	industry  string
	company   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "unicornctl",
		Short:         "Query a unicorn companies dataset from the command line",
		Long:          "unicornctl loads a CSV or XLSX unicorn dataset and prints the same summaries, groupings and chart figures the API serves.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv("DATASET_PATH")
	if defaultPath == "" {
		defaultPath = "data/unicorn.csv"
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.dataset, "dataset", "d", defaultPath, "Path to the CSV or XLSX dataset")
	flags.StringArrayVarP(&opts.countries, "country", "c", nil, "Country to include (repeatable)")
	flags.StringVarP(&opts.industry, "industry", "i", "", "Industry to include")
	flags.StringVar(&opts.company, "company", "", "Restrict to a single company")

	root.AddCommand(
		newOptionsCmd(opts),
		newSummaryCmd(opts),
		newAggregateCmd(opts),
		newChartCmd(opts),
		newTableCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func (o *rootOptions) load(cmd *cobra.Command) (*dataset.Dataset, error) {
	ds, err := dataset.LoadFile(cmd.Context(), o.dataset, logger.NewWriter(cmd.ErrOrStderr(), "unicornctl"))
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", o.dataset, err)
	}
	return ds, nil
}

func (o *rootOptions) selected(cmd *cobra.Command) ([]models.Company, error) {
	ds, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	sel := analytics.Selection{Countries: o.countries, Industry: o.industry, Company: o.company}
	return analytics.Filter(ds.Companies, sel.Normalize()), nil
}

func newOptionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the country and industry choices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analytics.BuildOptions(ds.Companies))
		},
	}
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print totals for the current selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			companies, err := opts.selected(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analytics.Summarize(companies))
		},
	}
}

func newAggregateCmd(opts *rootOptions) *cobra.Command {
	var by, metric string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Group the selection by a dimension",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dim, err := analytics.ParseDimension(by)
			if err != nil {
				return err
			}
			m, err := analytics.ParseMetric(metric)
			if err != nil {
				return err
			}

			companies, err := opts.selected(cmd)
			if err != nil {
				return err
			}
			groups, err := analytics.GroupBy(companies, dim, m)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), groups)
		},
	}

	cmd.Flags().StringVar(&by, "by", string(analytics.ByCountry), "Dimension: country, industry or city")
	cmd.Flags().StringVar(&metric, "metric", string(analytics.Sum), "Metric: sum or count")
	return cmd
}

func newChartCmd(opts *rootOptions) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:       "chart country|industry|count",
		Short:     "Print a bar chart figure as JSON",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"country", "industry", "count"},
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, err := opts.selected(cmd)
			if err != nil {
				return err
			}

			var fig charts.Figure
			switch args[0] {
			case "country":
				groups, err := analytics.GroupBy(companies, analytics.ByCountry, analytics.Sum)
				if err != nil {
					return err
				}
				fig = charts.CountryValuation(groups)
			case "industry":
				groups, err := analytics.GroupBy(companies, analytics.ByIndustry, analytics.Sum)
				if err != nil {
					return err
				}
				fig = charts.IndustryValuation(groups)
			default:
				dim, err := analytics.ParseDimension(by)
				if err != nil {
					return err
				}
				groups, err := analytics.GroupBy(companies, dim, analytics.Count)
				if err != nil {
					return err
				}
				fig = charts.CompanyCount(groups, dim)
			}
			return printJSON(cmd.OutOrStdout(), fig)
		},
	}

	cmd.Flags().StringVar(&by, "by", string(analytics.ByCountry), "Dimension for the count chart")
	return cmd
}

func newTableCmd(opts *rootOptions) *cobra.Command {
	var (
		sortBy string
		from   int
		size   int
	)

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print one sorted page of the selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := analytics.ParseSort(sortBy)
			if err != nil {
				return err
			}
			if from < 0 || size <= 0 {
				return fmt.Errorf("--from must be >= 0 and --size > 0")
			}

			companies, err := opts.selected(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analytics.Table(companies, analytics.TableQuery{Sort: spec, From: from, Size: size}))
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", analytics.DefaultSort.String(), "Sort as column:asc|desc")
	cmd.Flags().IntVar(&from, "from", 0, "Offset of the first row")
	cmd.Flags().IntVar(&size, "size", 20, "Rows per page")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		out    string
		sortBy string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the selection as CSV or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			spec, err := analytics.ParseSort(sortBy)
			if err != nil {
				return err
			}

			companies, err := opts.selected(cmd)
			if err != nil {
				return err
			}
			rows := analytics.SortCompanies(companies, spec)

			if out == "" || out == "-" {
				return export.Write(cmd.OutOrStdout(), f, rows)
			}

			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output directory %s: %w", dir, err)
				}
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := export.Write(file, f, rows); err != nil {
				file.Close()
				return fmt.Errorf("write %s: %w", out, err)
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d companies to %s\n", len(rows), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.CSV), "Output format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&sortBy, "sort", analytics.DefaultSort.String(), "Sort as column:asc|desc")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
