package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dkpmalut/lautdata/internal/app/features/imports/tabular"
	datasetstore "github.com/dkpmalut/lautdata/internal/app/store/datasets"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	importReplace bool
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import <dataset> <file>",
	Short: "Impor berkas CSV atau XLSX ke sebuah dataset",
	Long: `Parses a CSV or XLSX file and appends its rows to a dataset as one
import batch. With --replace every existing row of the dataset is removed
first. The file must carry the region, year and metric columns the catalog
maps for the dataset.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

var batchesCmd = &cobra.Command{
	Use:   "batches <dataset>",
	Short: "Daftar batch impor sebuah dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatches,
}

var deleteBatchCmd = &cobra.Command{
	Use:   "delete-batch <dataset> <batch>",
	Short: "Hapus semua baris dari satu batch impor",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeleteBatch,
}

func init() {
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Replace every row of the dataset")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the file without writing")
}

// parseFile reads and validates an import file for dataset d.
func parseFile(path string, d *chartcatalog.Dataset) (tabular.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return tabular.Result{}, err
	}
	defer f.Close()

	res, err := tabular.Parse(filepath.Base(path), f, tabular.ParseOptions{})
	if err != nil {
		return tabular.Result{}, fmt.Errorf("%s: %w", path, err)
	}
	if res.HasErrors() {
		return res, fmt.Errorf("%s: %d row errors", path, len(res.Errors))
	}
	if missing := res.Missing(d.Required()); len(missing) > 0 {
		return res, fmt.Errorf("%s: missing columns %s", path, strings.Join(missing, ", "))
	}
	return res, nil
}

// cacheNotice tells the operator that a running web server keeps charting
// its cached copy of dataset until dataset_cache_ttl passes or an admin
// refreshes it.
func cacheNotice(w io.Writer, dataset string) {
	fmt.Fprintf(w, "Catatan: server web menampilkan %s dari cache sampai dataset_cache_ttl habis.\n", dataset)
	fmt.Fprintf(w, "Agar perubahan segera tampil, pilih \"Muat ulang\" untuk %s di /admin/imports.\n", dataset)
}

func printRowErrors(w io.Writer, errs []tabular.RowError) {
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(w, "  baris %d: %s\n", e.Line, e.Reason)
		} else {
			fmt.Fprintf(w, "  %s\n", e.Reason)
		}
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	cat, err := chartcatalog.LoadFile(catalogPath)
	if err != nil {
		return err
	}
	d, err := cat.Dataset(name)
	if err != nil {
		return err
	}

	res, err := parseFile(path, d)
	if err != nil {
		printRowErrors(cmd.ErrOrStderr(), res.Errors)
		return err
	}
	if importDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d baris valid untuk %s\n", path, len(res.Records), name)
		return nil
	}

	return withDB(cmd, func(ctx context.Context, db *mongo.Database, _ *chartcatalog.Catalog) error {
		store := datasetstore.New(db)
		write := store.Insert
		if importReplace {
			write = store.Replace
		}
		batch, err := write(ctx, name, res.Records, filepath.Base(path))
		if errors.Is(err, datasetstore.ErrNoRecords) {
			return fmt.Errorf("%s: no data rows", path)
		}
		if err != nil {
			return err
		}
		logger.Info("dataset imported",
			zap.String("dataset", name),
			zap.String("batch", batch),
			zap.Int("rows", len(res.Records)),
			zap.Bool("replace", importReplace))
		fmt.Fprintf(cmd.OutOrStdout(), "%d baris diimpor ke %s (batch %s)\n", len(res.Records), name, batch)
		cacheNotice(cmd.ErrOrStderr(), name)
		return nil
	})
}

func runBatches(cmd *cobra.Command, args []string) error {
	return withDB(cmd, func(ctx context.Context, db *mongo.Database, cat *chartcatalog.Catalog) error {
		if _, err := cat.Dataset(args[0]); err != nil {
			return err
		}
		batches, err := datasetstore.New(db).Batches(ctx, args[0])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BATCH\tBERKAS\tBARIS\tDIIMPOR")
		for _, b := range batches {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, b.Source, b.Rows, b.ImportedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	})
}

func runDeleteBatch(cmd *cobra.Command, args []string) error {
	name, batch := args[0], args[1]
	return withDB(cmd, func(ctx context.Context, db *mongo.Database, cat *chartcatalog.Catalog) error {
		if _, err := cat.Dataset(name); err != nil {
			return err
		}
		n, err := datasetstore.New(db).DeleteBatch(ctx, name, batch)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("batch %s not found in %s", batch, name)
		}
		logger.Info("import batch deleted", zap.String("dataset", name), zap.String("batch", batch), zap.Int64("rows", n))
		fmt.Fprintf(cmd.OutOrStdout(), "%d baris dihapus dari %s\n", n, name)
		cacheNotice(cmd.ErrOrStderr(), name)
		return nil
	})
}
