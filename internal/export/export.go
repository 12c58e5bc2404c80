// Package export writes on-the-fly balance timelines to object storage as
// JSON documents.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/projection"
)

const contentType = "application/json"

// Timeline computes what-if projections.
type Timeline interface {
	ComputeBalancesOnTheFly(ctx context.Context, q projection.OnTheFlyQuery) ([]domain.BalancePoint, error)
}

// Document is the exported JSON body.
type Document struct {
	BankAccountID string                `json:"bank_account_id"`
	Start         civil.Date            `json:"start"`
	End           civil.Date            `json:"end"`
	ScenarioSetID string                `json:"scenario_set_id,omitempty"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Points        []domain.BalancePoint `json:"points"`
}

// Request describes one export. ScenarioSetID is recorded in the document;
// Query.Enabled must already be resolved from it.
type Request struct {
	Query         projection.OnTheFlyQuery
	ScenarioSetID string
}

// Result locates an exported document.
type Result struct {
	URI    string `json:"uri"`
	Points int    `json:"points"`
}

// Exporter writes timelines to one bucket.
type Exporter struct {
	timeline Timeline
	store    ObjectStore
	bucket   string
	log      zerolog.Logger
	now      func() time.Time
}

// NewExporter creates an Exporter. An empty bucket disables exports.
func NewExporter(timeline Timeline, store ObjectStore, bucket string, log zerolog.Logger) *Exporter {
	return &Exporter{
		timeline: timeline,
		store:    store,
		bucket:   bucket,
		log:      log,
		now:      time.Now,
	}
}

// Enabled reports whether a bucket is configured.
func (e *Exporter) Enabled() bool {
	return e.bucket != "" && e.store != nil
}

// Export computes the timeline for req and uploads it.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if !e.Enabled() {
		return nil, domain.Invalid("export.bucket", "no export bucket configured")
	}

	points, err := e.timeline.ComputeBalancesOnTheFly(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	generated := e.now().UTC()
	doc := Document{
		BankAccountID: req.Query.AccountID,
		Start:         req.Query.Start,
		End:           req.Query.End,
		ScenarioSetID: req.ScenarioSetID,
		GeneratedAt:   generated,
		Points:        points,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("Export: encoding document: %w", err)
	}

	object := ObjectName(req.Query.AccountID, req.Query.Start, req.Query.End, generated)
	if err := e.store.Put(ctx, e.bucket, object, contentType, data); err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", e.bucket, object)
	e.log.Info().
		Str("bank_account_id", req.Query.AccountID).
		Str("uri", uri).
		Int("points", len(points)).
		Msg("Timeline exported")
	return &Result{URI: uri, Points: len(points)}, nil
}

// Fetch reads back an exported document.
func (e *Exporter) Fetch(ctx context.Context, uri string) (*Document, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, domain.Invalid("uri", err.Error())
	}
	data, err := e.store.Get(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("Fetch: decoding %s: %w", uri, err)
	}
	return &doc, nil
}

// ObjectName is where a timeline export is stored.
func ObjectName(accountID string, start, end civil.Date, generated time.Time) string {
	return fmt.Sprintf("timelines/%s/%s_%s-%s.json", accountID, start, end, generated.Format("20060102T150405Z"))
}
