package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/dkpmalut/lautdata/internal/app/stats/export"
	datasetstore "github.com/dkpmalut/lautdata/internal/app/store/datasets"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	exportFormat string
	exportOutput string
)

var printCmd = &cobra.Command{
	Use:   "print <chart> [key=value...]",
	Short: "Tampilkan tabel sebuah grafik",
	Long: `Runs a chart over the stored datasets and prints its table. Extra
arguments use the chart page's query keys, for example:

  lautdatactl print produksi-per-wilayah year=2023 series=tangkap`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrint,
}

var exportCmd = &cobra.Command{
	Use:   "export <chart> [key=value...]",
	Short: "Ekspor tabel sebuah grafik ke CSV atau XLSX",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format: csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: derived from the chart title, - for stdout)")
}

// parseQuery turns key=value arguments into chart query values.
func parseQuery(args []string) (url.Values, error) {
	q := url.Values{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("argument %q: want key=value", a)
		}
		q.Add(strings.TrimSpace(k), v)
	}
	return q, nil
}

// buildView reads the chart's datasets and runs the pipeline for q.
func buildView(ctx context.Context, db *mongo.Database, cat *chartcatalog.Catalog, chartID string, q url.Values) (*chartcatalog.View, error) {
	ch, err := cat.Chart(chartID)
	if err != nil {
		return nil, err
	}

	var reqs []datasetstore.Request
	for _, name := range ch.Datasets() {
		d, err := cat.Dataset(name)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, datasetstore.Request{Dataset: name, Columns: d.Projection()})
	}

	fetcher := datasetstore.NewFetcher(datasetstore.New(db), 0, logger, nil)
	records, err := fetcher.FetchBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}

	v := cat.Build(ch, records, ch.RequestFromQuery(q))
	for key, rep := range v.Drops {
		if n := rep.DroppedCount(); n > 0 {
			logger.Debug("rows dropped during normalization",
				zap.String("series", key),
				zap.Int("dropped", n),
				zap.Any("reasons", rep.Dropped))
		}
	}
	return v, nil
}

// printTable writes t as aligned text columns.
func printTable(w io.Writer, t stats.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, rec := range t.Records() {
		fmt.Fprintln(tw, strings.Join(rec, "\t")+"\t")
	}
	return tw.Flush()
}

func runPrint(cmd *cobra.Command, args []string) error {
	q, err := parseQuery(args[1:])
	if err != nil {
		return err
	}
	return withDB(cmd, func(ctx context.Context, db *mongo.Database, cat *chartcatalog.Catalog) error {
		v, err := buildView(ctx, db, cat, args[0], q)
		if err != nil {
			return err
		}
		if v.Empty {
			fmt.Fprintln(cmd.OutOrStdout(), "Tidak ada data untuk pilihan ini.")
			return nil
		}
		return printTable(cmd.OutOrStdout(), v.Table)
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	q, err := parseQuery(args[1:])
	if err != nil {
		return err
	}
	var write func(io.Writer, stats.Table) error
	switch strings.ToLower(exportFormat) {
	case "csv":
		write = export.WriteCSV
	case "xlsx":
		write = export.WriteXLSX
	default:
		return fmt.Errorf("unknown format %q (want csv or xlsx)", exportFormat)
	}

	return withDB(cmd, func(ctx context.Context, db *mongo.Database, cat *chartcatalog.Catalog) error {
		v, err := buildView(ctx, db, cat, args[0], q)
		if err != nil {
			return err
		}
		if err := export.Check(v.Table, v.AnyActive()); err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := write(&buf, v.Table); err != nil {
			return err
		}
		if exportOutput == "-" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		out := exportOutput
		if out == "" {
			out = export.Filename(v.Chart.Title, strings.ToLower(exportFormat))
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "ditulis: %s\n", out)
		return nil
	})
}
