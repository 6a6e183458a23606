package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"salespipe/internal/batch"
	"salespipe/internal/manifest"
	"salespipe/internal/metrics"
	"salespipe/internal/warehouse"
)

// State names the stage a run last completed.
type State string

const (
	StatePulled     State = "PULLED"
	StateDoneEmpty  State = "DONE_EMPTY"
	StateWritten    State = "WRITTEN"
	StateLoaded     State = "LOADED"
	StateAggregated State = "AGGREGATED"
	StateDone       State = "DONE"
)

// FailKind classifies a fatal step failure per the pipeline error
// taxonomy. Pull failures never appear here; the extractor degrades to an
// empty batch instead.
type FailKind string

const (
	FailStorage FailKind = "storage"
	FailLoad    FailKind = "load"
	FailQuery   FailKind = "query"
)

// RunError is a fatal pipeline-run failure. Result.State reports the last
// completed stage; nothing after it was attempted.
type RunError struct {
	Kind FailKind
	Err  error
}

func (e *RunError) Error() string { return fmt.Sprintf("%s step failed: %v", e.Kind, e.Err) }
func (e *RunError) Unwrap() error { return e.Err }

// Step interfaces, one per pipeline stage, so runs can be assembled from
// fakes in tests.
type Extractor interface {
	Pull(ctx context.Context, max int) batch.RecordSet
}

type Writer interface {
	Write(records batch.RecordSet, logicalTime time.Time) (string, error)
}

type Loader interface {
	Load(key string) (warehouse.LoadResult, error)
}

type Aggregator interface {
	Rebuild() (int, error)
}

// Result describes one pipeline run.
type Result struct {
	State       State
	ObjectKey   string
	Pulled      int
	Malformed   int
	LoadedRows  int
	SummaryRows int
	Duration    time.Duration
}

// Orchestrator sequences extract -> write -> load -> aggregate with a
// short-circuit on empty batches. Steps run strictly sequentially; each
// step runs only if its predecessor succeeded with a non-empty result.
type Orchestrator struct {
	extractor   Extractor
	writer      Writer
	loader      Loader
	aggregator  Aggregator
	manifests   manifest.Publisher // nil disables manifest publishing
	mreg        *metrics.Registry
	maxMessages int

	rawTable     string
	summaryTable string
}

// DefaultMaxMessages bounds one pull, matching the upstream subscription
// pull limit.
const DefaultMaxMessages = 10

func NewOrchestrator(ex Extractor, w Writer, l Loader, a Aggregator, pubs manifest.Publisher, mreg *metrics.Registry, maxMessages int) *Orchestrator {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Orchestrator{
		extractor:   ex,
		writer:      w,
		loader:      l,
		aggregator:  a,
		manifests:   pubs,
		mreg:        mreg,
		maxMessages: maxMessages,
	}
}

// SetTables records the logical warehouse table identifiers stamped into
// run manifests.
func (o *Orchestrator) SetTables(raw, summary string) {
	o.rawTable = raw
	o.summaryTable = summary
}

// Run executes one pipeline run at the given logical execution time.
// Failure at any step is fatal to the run; there is no cross-step
// compensation (a failed load does not retract the written batch object).
func (o *Orchestrator) Run(ctx context.Context, logicalTime time.Time) (Result, error) {
	start := time.Now()
	o.mreg.RunsTotal.Inc()
	res := Result{}

	set := o.extractor.Pull(ctx, o.maxMessages)
	res.State = StatePulled
	res.Pulled = len(set.Events)
	res.Malformed = set.Malformed
	o.mreg.RecordsPulled.Add(float64(len(set.Events)))
	o.mreg.MalformedDropped.Add(float64(set.Malformed))

	if set.Empty() {
		res.State = StateDoneEmpty
		res.Duration = time.Since(start)
		o.mreg.RunsEmpty.Inc()
		log.Printf("run %s: empty batch, short-circuit", logicalTime.Format("20060102_150405"))
		return res, nil
	}

	key, err := o.writer.Write(set, logicalTime)
	if err != nil {
		return o.fail(res, start, FailStorage, err)
	}
	res.State = StateWritten
	res.ObjectKey = key
	o.mreg.BatchesWritten.Inc()

	loaded, err := o.loader.Load(key)
	if err != nil {
		return o.fail(res, start, FailLoad, err)
	}
	res.State = StateLoaded
	res.LoadedRows = loaded.Rows
	o.mreg.RowsLoaded.Add(float64(loaded.Rows))

	rows, err := o.aggregator.Rebuild()
	if err != nil {
		return o.fail(res, start, FailQuery, err)
	}
	res.State = StateAggregated
	res.SummaryRows = rows
	o.mreg.SummaryRows.Set(float64(rows))

	res.State = StateDone
	res.Duration = time.Since(start)
	o.mreg.RunDurationSec.Observe(res.Duration.Seconds())

	if o.manifests != nil {
		m := manifest.RunManifest{
			RunID:                  logicalTime.Format("20060102_150405"),
			ObjectKey:              key,
			RawTable:               o.rawTable,
			SummaryTable:           o.summaryTable,
			Records:                res.Pulled,
			LoadedRows:             loaded.Rows,
			CompletedAtEpochSecond: time.Now().UTC().Unix(),
		}
		// Advisory only; a manifest failure does not fail a run that
		// already landed.
		if err := o.manifests.PublishLatest(m); err != nil {
			log.Printf("run %s: manifest publish failed: %v", m.RunID, err)
		}
	}

	log.Printf("run %s: %s pulled=%d loaded=%d summary=%d object=%s",
		logicalTime.Format("20060102_150405"), res.State, res.Pulled, res.LoadedRows, rows, key)
	return res, nil
}

func (o *Orchestrator) fail(res Result, start time.Time, kind FailKind, err error) (Result, error) {
	res.Duration = time.Since(start)
	o.mreg.RunsFailed.Inc()
	return res, &RunError{Kind: kind, Err: err}
}
