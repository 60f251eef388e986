package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"webshop/internal/catalog"
	"webshop/internal/changelog"
	"webshop/internal/config"
	"webshop/internal/manifest"
	"webshop/internal/metrics"
	"webshop/internal/model"
	"webshop/internal/order"
	"webshop/internal/restore"
	"webshop/internal/snapshot"
	"webshop/internal/state"
)

func main() {
	var (
		manifestSource  string
		changelogSource string
		metricsAddr     string
		poll            time.Duration
	)
	config.LoadEnv()
	cfg := config.Register(flag.CommandLine)
	flag.StringVar(&manifestSource, "manifest-source", "file", "file|kafka")
	flag.StringVar(&changelogSource, "changelog-source", "file", "file|kafka")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address while polling")
	flag.DurationVar(&poll, "poll", 0, "rebuild repeatedly at this interval (0 runs once)")
	flag.Parse()

	var mReader manifest.Reader = manifest.NewFilesystemManifest(cfg.SnapshotDir)
	if manifestSource == "kafka" {
		mReader = manifest.NewKafkaReader(cfg.KafkaBootstrap, cfg.ManifestTopic, manifest.DefaultKey)
	}
	var src changelog.Reader = changelog.NewFileReader(filepath.Join(cfg.ChangelogDir, config.ChangelogFile))
	if changelogSource == "kafka" {
		src = changelog.NewKafkaReader(cfg.KafkaBootstrap, cfg.EventTopic)
	}
	snaps := snapshot.NewFilesystemSnapshotter(cfg.SnapshotDir)
	mreg := metrics.NewRegistry()

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	for {
		if err := rebuild(context.Background(), os.Stdout, snaps, mReader, src, mreg); err != nil {
			if poll == 0 {
				log.Fatalf("report failed: %v", err)
			}
			log.Printf("report: %v", err)
		}
		if poll == 0 {
			return
		}
		time.Sleep(poll)
	}
}

// rebuild restores into a fresh in-memory DB each time so runs never see
// each other's state.
func rebuild(ctx context.Context, out io.Writer, snaps restore.SnapshotReader, mr manifest.Reader, src changelog.Reader, mreg *metrics.Registry) error {
	t1 := time.Now()
	db := state.NewMemoryDB()
	r, err := restore.NewRestorer(db, snaps, mr)
	if err != nil {
		return err
	}
	res, err := r.RestoreAndReplay(ctx, src)
	if err != nil {
		return err
	}
	mreg.RestoreApplied.Add(float64(res.Applied))
	mreg.RestoreSkipped.Add(float64(res.Skipped))
	mreg.RestoreDurationSec.Set(time.Since(t1).Seconds())
	if m, err := mr.ReadLatest(ctx); err == nil {
		mreg.ManifestAgeSec.Set(time.Since(time.Unix(m.CreatedAtEpochSecond, 0)).Seconds())
	}
	log.Printf("rebuild: snapshot=%q applied=%d skipped=%d ttr=%.3fs", res.SnapshotID, res.Applied, res.Skipped, time.Since(t1).Seconds())
	return printReport(out, db)
}

func printReport(out io.Writer, db state.DB) error {
	ptbl, err := db.Table(catalog.TableName)
	if err != nil {
		return err
	}
	products, err := state.ListJSON[model.Product](ptbl)
	if err != nil {
		return err
	}
	otbl, err := db.Table(order.TableName)
	if err != nil {
		return err
	}
	orders, err := state.ListJSON[model.Order](otbl)
	if err != nil {
		return err
	}

	sold := make(map[int64]int)
	revenue := decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(o.TotalAmount)
		for _, it := range o.Items {
			sold[it.ProductID] += it.Quantity
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tSTOCK\tSOLD")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", p.ID, p.Name, p.Stock, sold[p.ID])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "orders: %d  revenue: %s\n", len(orders), revenue.StringFixed(2))
	return err
}
