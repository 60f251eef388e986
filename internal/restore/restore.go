package restore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"webshop/internal/catalog"
	"webshop/internal/changelog"
	"webshop/internal/manifest"
	"webshop/internal/model"
	"webshop/internal/order"
	"webshop/internal/snapshot"
	"webshop/internal/state"
)

// SnapshotReader loads a snapshot by id. *snapshot.FilesystemSnapshotter satisfies it.
type SnapshotReader interface {
	ReadSnapshot(snapshotID string) (snapshot.State, error)
}

// Restorer rebuilds products and orders into a state DB from the latest
// snapshot plus the changelog written after it.
type Restorer struct {
	products       state.Table
	orders         state.Table
	snapshots      SnapshotReader
	manifestReader manifest.Reader
}

func NewRestorer(db state.DB, snaps SnapshotReader, mr manifest.Reader) (*Restorer, error) {
	products, err := db.Table(catalog.TableName)
	if err != nil {
		return nil, err
	}
	orders, err := db.Table(order.TableName)
	if err != nil {
		return nil, err
	}
	return &Restorer{products: products, orders: orders, snapshots: snaps, manifestReader: mr}, nil
}

type RestoreResult struct {
	SnapshotID string
	Applied    int
	Skipped    int
	Error      error
}

// RestoreFromSnapshot replaces the current tables with the snapshot contents.
// A missing snapshot is logged and leaves the tables untouched.
func (r *Restorer) RestoreFromSnapshot(snapshotID string) error {
	if snapshotID == "" {
		return nil
	}
	st, err := r.snapshots.ReadSnapshot(snapshotID)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("restore: snapshot %s not found, skipping", snapshotID)
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.products.Truncate(); err != nil {
		return fmt.Errorf("truncate products: %w", err)
	}
	if err := r.orders.Truncate(); err != nil {
		return fmt.Errorf("truncate orders: %w", err)
	}
	for _, p := range st.Products {
		if err := state.PutJSON(r.products, p.ID, p); err != nil {
			return fmt.Errorf("load product %d: %w", p.ID, err)
		}
	}
	for _, o := range st.Orders {
		if err := state.PutJSON(r.orders, o.ID, o); err != nil {
			return fmt.Errorf("load order %d: %w", o.ID, err)
		}
	}
	log.Printf("restore: loaded %d products and %d orders from snapshot %s", len(st.Products), len(st.Orders), snapshotID)
	return nil
}

// Apply replays one entry. It reports false when the order already exists,
// which makes replaying an overlapping range harmless.
func (r *Restorer) Apply(e changelog.Entry) (bool, error) {
	if e.Type != changelog.TypeOrderCreated {
		return false, nil
	}
	if _, err := r.orders.Get(e.Seq); err == nil {
		return false, nil
	} else if !errors.Is(err, state.ErrNotFound) {
		return false, err
	}
	for _, it := range e.Order.Items {
		p, err := state.GetJSON[model.Product](r.products, it.ProductID)
		if errors.Is(err, state.ErrNotFound) {
			log.Printf("restore: order %d references unknown product %d", e.Seq, it.ProductID)
			continue
		}
		if err != nil {
			return false, err
		}
		p.Stock -= it.Quantity
		if p.Stock < 0 {
			log.Printf("restore: stock of product %d would drop below zero replaying order %d, clamping", p.ID, e.Seq)
			p.Stock = 0
		}
		if err := state.PutJSON(r.products, p.ID, p); err != nil {
			return false, err
		}
	}
	o := e.Order
	o.ID = e.Seq
	if err := state.PutJSON(r.orders, o.ID, o); err != nil {
		return false, err
	}
	return true, nil
}

// ReplayChangelog applies every entry of src after fromOffset.
func (r *Restorer) ReplayChangelog(ctx context.Context, src changelog.Reader, fromOffset int64) RestoreResult {
	var res RestoreResult
	res.Error = src.ReadFrom(ctx, fromOffset, func(e changelog.Entry) error {
		ok, err := r.Apply(e)
		if err != nil {
			return err
		}
		if ok {
			res.Applied++
		} else {
			res.Skipped++
		}
		return nil
	})
	return res
}

// RestoreAndReplay loads the snapshot named by the latest manifest and replays
// src from the manifest offset. Without a manifest the whole changelog is replayed
// on top of the current tables.
func (r *Restorer) RestoreAndReplay(ctx context.Context, src changelog.Reader) (RestoreResult, error) {
	m, err := r.manifestReader.ReadLatest(ctx)
	if errors.Is(err, manifest.ErrNoManifest) {
		log.Printf("restore: no manifest, replaying the full changelog")
		m = manifest.Manifest{}
	} else if err != nil {
		return RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}

	if err := r.RestoreFromSnapshot(m.SnapshotID); err != nil {
		return RestoreResult{}, fmt.Errorf("restore snapshot: %w", err)
	}

	result := r.ReplayChangelog(ctx, src, m.LastChangelogOffset)
	result.SnapshotID = m.SnapshotID
	return result, result.Error
}
