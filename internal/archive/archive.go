// Package archive files scrape snapshots and conversion reports into a blob store: one copy per
// run under its year and one "latest" copy that readers load.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
)

// Object names used by the writer and reader.
const (
	LatestSnapshot = "prices_latest.json"
	LatestReport   = "ranking_latest.json"
	archiveDir     = "archive"
	reportDir      = "reports"
	stampLayout    = "20060102_150405"
	contentType    = "application/json; charset=utf-8"
)

// SnapshotPath is the archive object name for a snapshot taken at t,
// e.g. archive/2024/prices_20240301_150405.json.
func SnapshotPath(t time.Time) string {
	t = t.UTC()
	return path.Join(archiveDir, t.Format("2006"), "prices_"+t.Format(stampLayout)+".json")
}

// ReportPath is the archive object name for a report generated at t.
func ReportPath(t time.Time) string {
	t = t.UTC()
	return path.Join(reportDir, t.Format("2006"), "ranking_"+t.Format(stampLayout)+".json")
}

// Result lists where a document was written.
type Result struct {
	LatestURI  string
	ArchiveURI string
	Digest     string
}

// Writer stores documents in a crawler.BlobStore.
type Writer struct {
	store  crawler.BlobStore
	hasher crawler.Hasher
}

// NewWriter builds a Writer. hasher may be nil, in which case no digest is computed.
func NewWriter(store crawler.BlobStore, hasher crawler.Hasher) *Writer {
	return &Writer{store: store, hasher: hasher}
}

// Write stores snap under its archive path and as the latest snapshot.
func (w *Writer) Write(ctx context.Context, snap crawler.Snapshot, at time.Time) (Result, error) {
	data, err := encode(snap)
	if err != nil {
		return Result{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return w.put(ctx, data, SnapshotPath(at), LatestSnapshot)
}

// WriteReport stores a conversion report the same way as snapshots.
func (w *Writer) WriteReport(ctx context.Context, report any, at time.Time) (Result, error) {
	data, err := encode(report)
	if err != nil {
		return Result{}, fmt.Errorf("encode report: %w", err)
	}
	return w.put(ctx, data, ReportPath(at), LatestReport)
}

func (w *Writer) put(ctx context.Context, data []byte, archivePath, latestPath string) (Result, error) {
	var res Result
	if w.hasher != nil {
		digest, err := w.hasher.Hash(data)
		if err != nil {
			return Result{}, fmt.Errorf("hash %s: %w", archivePath, err)
		}
		res.Digest = digest
	}
	uri, err := w.store.PutObject(ctx, archivePath, contentType, data)
	if err != nil {
		return Result{}, fmt.Errorf("write %s: %w", archivePath, err)
	}
	res.ArchiveURI = uri
	uri, err = w.store.PutObject(ctx, latestPath, contentType, data)
	if err != nil {
		return res, fmt.Errorf("write %s: %w", latestPath, err)
	}
	res.LatestURI = uri
	return res, nil
}

// encode writes indented JSON without HTML escaping so currency symbols and "&" in plan labels
// stay readable.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Reader loads snapshots back from a crawler.BlobStore.
type Reader struct {
	store crawler.BlobStore
}

// NewReader builds a Reader.
func NewReader(store crawler.BlobStore) *Reader {
	return &Reader{store: store}
}

// Latest loads the most recent snapshot. A missing snapshot surfaces the store's not-found error.
func (r *Reader) Latest(ctx context.Context) (crawler.Snapshot, error) {
	return r.Snapshot(ctx, LatestSnapshot)
}

// Snapshot loads the snapshot stored at name.
func (r *Reader) Snapshot(ctx context.Context, name string) (crawler.Snapshot, error) {
	data, err := r.store.GetObject(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var snap crawler.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if snap == nil {
		snap = crawler.Snapshot{}
	}
	return snap, nil
}
