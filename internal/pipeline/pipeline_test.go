package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"salespipe/internal/batch"
	"salespipe/internal/manifest"
	"salespipe/internal/metrics"
	"salespipe/internal/model"
	"salespipe/internal/objstore"
	"salespipe/internal/warehouse"

	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	set   batch.RecordSet
	calls int
}

func (f *fakeExtractor) Pull(ctx context.Context, max int) batch.RecordSet {
	f.calls++
	return f.set
}

type fakeWriter struct {
	key   string
	err   error
	calls int
}

func (f *fakeWriter) Write(records batch.RecordSet, logicalTime time.Time) (string, error) {
	f.calls++
	return f.key, f.err
}

type fakeLoader struct {
	res   warehouse.LoadResult
	err   error
	calls int
}

func (f *fakeLoader) Load(key string) (warehouse.LoadResult, error) {
	f.calls++
	return f.res, f.err
}

type fakeAggregator struct {
	rows  int
	err   error
	calls int
}

func (f *fakeAggregator) Rebuild() (int, error) {
	f.calls++
	return f.rows, f.err
}

type recordingManifest struct {
	published []manifest.RunManifest
}

func (r *recordingManifest) PublishLatest(m manifest.RunManifest) error {
	r.published = append(r.published, m)
	return nil
}

func someRecords() batch.RecordSet {
	return batch.RecordSet{Events: []model.SalesEvent{
		{OrderID: 1, ProductID: 1, Quantity: 2, UnitPrice: 10, Timestamp: "2024-01-15T10:00:00", TotalAmount: 20},
	}}
}

func logical() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }

func TestRun_EmptyBatchShortCircuits(t *testing.T) {
	ex := &fakeExtractor{}
	w := &fakeWriter{}
	l := &fakeLoader{}
	a := &fakeAggregator{}
	o := NewOrchestrator(ex, w, l, a, nil, metrics.NewRegistry(), 10)

	res, err := o.Run(context.Background(), logical())
	require.NoError(t, err)
	require.Equal(t, StateDoneEmpty, res.State)
	require.Equal(t, 1, ex.calls)
	require.Zero(t, w.calls, "writer must not run on an empty batch")
	require.Zero(t, l.calls, "loader must not run on an empty batch")
	require.Zero(t, a.calls, "aggregator must not run on an empty batch")
}

func TestRun_FullChain(t *testing.T) {
	ex := &fakeExtractor{set: someRecords()}
	w := &fakeWriter{key: "sales/raw/sales_20240115_103000.json"}
	l := &fakeLoader{res: warehouse.LoadResult{ObjectKey: w.key, Rows: 1}}
	a := &fakeAggregator{rows: 1}
	pubs := &recordingManifest{}
	o := NewOrchestrator(ex, w, l, a, pubs, metrics.NewRegistry(), 10)

	res, err := o.Run(context.Background(), logical())
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)
	require.Equal(t, "sales/raw/sales_20240115_103000.json", res.ObjectKey)
	require.Equal(t, 1, res.Pulled)
	require.Equal(t, 1, res.LoadedRows)
	require.Equal(t, 1, res.SummaryRows)
	require.Equal(t, 1, w.calls)
	require.Equal(t, 1, l.calls)
	require.Equal(t, 1, a.calls)

	require.Len(t, pubs.published, 1)
	require.Equal(t, "20240115_103000", pubs.published[0].RunID)
	require.Equal(t, w.key, pubs.published[0].ObjectKey)
}

func TestRun_ManifestCarriesTableIdentifiers(t *testing.T) {
	ex := &fakeExtractor{set: someRecords()}
	w := &fakeWriter{key: "sales/raw/sales_20240115_103000.json"}
	l := &fakeLoader{res: warehouse.LoadResult{ObjectKey: w.key, Rows: 1}}
	a := &fakeAggregator{rows: 1}
	pubs := &recordingManifest{}
	o := NewOrchestrator(ex, w, l, a, pubs, metrics.NewRegistry(), 10)
	o.SetTables("local-dev.sales_dwh.sales_raw", "local-dev.sales_dwh.sales_summary")

	_, err := o.Run(context.Background(), logical())
	require.NoError(t, err)
	require.Len(t, pubs.published, 1)
	require.Equal(t, "local-dev.sales_dwh.sales_raw", pubs.published[0].RawTable)
	require.Equal(t, "local-dev.sales_dwh.sales_summary", pubs.published[0].SummaryTable)
}

func TestRun_WriteFailureStopsRun(t *testing.T) {
	ex := &fakeExtractor{set: someRecords()}
	w := &fakeWriter{err: &batch.StorageError{Err: errors.New("bucket down")}}
	l := &fakeLoader{}
	a := &fakeAggregator{}
	o := NewOrchestrator(ex, w, l, a, nil, metrics.NewRegistry(), 10)

	res, err := o.Run(context.Background(), logical())
	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, FailStorage, rerr.Kind)
	require.Equal(t, StatePulled, res.State)
	require.Zero(t, l.calls)
	require.Zero(t, a.calls)
}

func TestRun_LoadFailureStopsRun(t *testing.T) {
	ex := &fakeExtractor{set: someRecords()}
	w := &fakeWriter{key: "k"}
	l := &fakeLoader{err: &warehouse.LoadError{Err: errors.New("warehouse down")}}
	a := &fakeAggregator{}
	o := NewOrchestrator(ex, w, l, a, nil, metrics.NewRegistry(), 10)

	res, err := o.Run(context.Background(), logical())
	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, FailLoad, rerr.Kind)
	require.Equal(t, StateWritten, res.State)
	require.Zero(t, a.calls, "a failed load must not trigger an aggregate rebuild")
}

func TestRun_AggregateFailureStopsRun(t *testing.T) {
	ex := &fakeExtractor{set: someRecords()}
	w := &fakeWriter{key: "k"}
	l := &fakeLoader{res: warehouse.LoadResult{Rows: 1}}
	a := &fakeAggregator{err: &warehouse.QueryError{Err: errors.New("rebuild failed")}}
	o := NewOrchestrator(ex, w, l, a, nil, metrics.NewRegistry(), 10)

	res, err := o.Run(context.Background(), logical())
	var rerr *RunError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, FailQuery, rerr.Kind)
	require.Equal(t, StateLoaded, res.State)
}

// End-to-end over real components with in-memory bindings.
func TestRun_EndToEnd(t *testing.T) {
	objects := objstore.NewInMemoryStore()
	store := warehouse.NewInMemoryStore()
	ex := &fakeExtractor{set: batch.RecordSet{Events: []model.SalesEvent{
		{OrderID: 1, ProductID: 1, Quantity: 2, UnitPrice: 10, Timestamp: "2024-01-15T09:00:00", TotalAmount: 20},
		{OrderID: 2, ProductID: 1, Quantity: 3, UnitPrice: 15, Timestamp: "2024-01-15T17:00:00", TotalAmount: 45},
	}}}
	o := NewOrchestrator(
		ex,
		batch.NewWriter(objects),
		warehouse.NewLoader(objects, store),
		warehouse.NewAggregator(store),
		nil,
		metrics.NewRegistry(),
		10,
	)

	res, err := o.Run(context.Background(), logical())
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)
	require.Equal(t, "sales/raw/sales_20240115_103000.json", res.ObjectKey)

	rows, err := store.Summary()
	require.NoError(t, err)
	require.Equal(t, []warehouse.SummaryRow{{
		ProductID:     1,
		SaleDate:      "2024-01-15",
		TotalOrders:   2,
		TotalQuantity: 5,
		TotalRevenue:  65.0,
	}}, rows)
}
