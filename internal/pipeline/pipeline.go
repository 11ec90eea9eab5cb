package pipeline

import (
	"bankcap/internal/dataset"
	"bankcap/internal/load"
	"bankcap/internal/progress"
	"bankcap/internal/query"
	"bankcap/internal/rates"
	"bankcap/internal/transform"
	"bankcap/lib/telemetry"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("bankcap.internal.pipeline")

// Stage identifies where in the run a failure occurred.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
	StageQuery     Stage = "query"
)

// StageError is returned by Run, Err carries the typed etlerr.Error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %s", e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Extractor interface {
	Extract(ctx context.Context, url string, columns []string) (dataset.Table, error)
}

// RatesLoader reads the reference rate table, it is called once per run.
type RatesLoader func() (transform.RateSource, error)

// RatesFile loads rates from a Currency,Rate csv file.
func RatesFile(path string) RatesLoader {
	return func() (transform.RateSource, error) {
		table, err := rates.Load(path)
		if err != nil {
			return nil, err
		}
		return table, nil
	}
}

type Pipeline struct {
	Source       string
	Schema       dataset.Schema
	BaseCurrency string
	Extractor    Extractor
	Rates        RatesLoader
	// Loaders run in order, a disabled destination is load.Nop.
	Loaders []load.Loader
	Queries []string
	// Runner is nil when there is no store to query.
	Runner *query.Runner
	// Sink defaults to progress.Nop.
	Sink progress.Sink
}

type QueryResult struct {
	Query  string
	Result query.ResultSet
}

type Report struct {
	RunID    string
	Records  int
	Results  []QueryResult
	Duration time.Duration
}

func (p Pipeline) sink() progress.Sink {
	if p.Sink == nil {
		return progress.Nop
	}
	return p.Sink
}

var stageActivity = map[Stage]string{
	StageExtract:   "data extraction",
	StageTransform: "data transformation",
	StageLoad:      "data load",
	StageQuery:     "query",
}

func (p Pipeline) fail(ctx context.Context, span trace.Span, stage Stage, err error) error {
	p.sink().Record(ctx, fmt.Sprintf("Error occurred with %s : %s", stageActivity[stage], err.Error()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &StageError{Stage: stage, Err: err}
}

// Run executes extract, transform, every loader and then every query,
// strictly in that order. The first failure stops the run.
func (p Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", report.RunID),
		attribute.String("source", p.Source),
	)

	log := slog.With("run_id", report.RunID)
	sink := p.sink()
	defer telemetry.RecordPerfStats(ctx)

	sink.Record(ctx, "Data extraction started")
	table, err := p.Extractor.Extract(ctx, p.Source, p.Schema.ExtractColumns(p.BaseCurrency))
	if err != nil {
		return report, p.fail(ctx, span, StageExtract, err)
	}
	sink.Record(ctx, "Data extraction finished")
	log.InfoContext(ctx, "extracted", "rows", len(table.Rows))

	sink.Record(ctx, "Data transformation started")
	ds, err := p.transform(ctx, table)
	if err != nil {
		return report, p.fail(ctx, span, StageTransform, err)
	}
	sink.Record(ctx, "Data transformation finished")
	report.Records = len(ds.Records)

	for _, loader := range p.Loaders {
		sink.Record(ctx, fmt.Sprintf("Load data to %s started", loader.Name()))
		err := loader.Load(ctx, ds)
		if err != nil {
			return report, p.fail(ctx, span, StageLoad, err)
		}
		sink.Record(ctx, fmt.Sprintf("Load data to %s finished", loader.Name()))
		log.InfoContext(ctx, "loaded", "destination", loader.Name(), "records", len(ds.Records))
	}

	if p.Runner != nil {
		for _, q := range p.Queries {
			sink.Record(ctx, fmt.Sprintf("Run query '%s' started", q))
			result, err := p.Runner.Run(ctx, q)
			if err != nil {
				return report, p.fail(ctx, span, StageQuery, err)
			}
			sink.Record(ctx, fmt.Sprintf("Run query '%s' executed", q))
			report.Results = append(report.Results, QueryResult{Query: q, Result: result})
		}
	}

	report.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("records", report.Records))
	log.InfoContext(ctx, "run finished", "records", report.Records, "duration", report.Duration)
	return report, nil
}

func (p Pipeline) transform(ctx context.Context, table dataset.Table) (dataset.Dataset, error) {
	rateSource, err := p.Rates()
	if err != nil {
		return dataset.Dataset{}, err
	}
	return transform.Transform(ctx, table, rateSource, p.Schema, p.BaseCurrency)
}
