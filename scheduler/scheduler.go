// Package scheduler runs the translation jobs of one record: it enumerates
// eligible field × target-locale pairs, drives them through a bounded worker
// pool with inter-job pacing, and coalesces the resulting writes into
// time-batched flushes so the host's validation pipeline is never flooded.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldloc/fieldloc/schema"
)

// ---------------------------------------------------------------------------
// Host
// ---------------------------------------------------------------------------

// Host is the record-owning collaborator: it exposes the field metadata and
// values of one record and accepts translated values back.
type Host interface {
	// Fields returns the record's field metadata.
	Fields() ([]schema.Field, error)
	// Value returns the current value of a field in one locale.
	Value(fieldKey, locale string) (any, error)
	// SetValue stores a translated value for a field in one locale.
	SetValue(ctx context.Context, fieldKey, locale string, value any) error
	// Notify surfaces a user-visible notice (kind is one of the Notice
	// constants).
	Notify(kind, message string)
}

// Notice kinds passed to Host.Notify.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

const (
	// DefaultConcurrency is the worker-pool size.
	DefaultConcurrency = 3
	// DefaultJobPacing is the sleep each worker takes between jobs to smooth
	// request bursts.
	DefaultJobPacing = 60 * time.Millisecond
	// DefaultFlushDebounce is how long the writer waits after the first
	// pending result before flushing the batch.
	DefaultFlushDebounce = 250 * time.Millisecond
	// DefaultWritePacing is the delay between individual host writes within
	// one flush.
	DefaultWritePacing = 80 * time.Millisecond
)

// Translator translates one field value. *translate.Translator satisfies it.
type Translator interface {
	Translate(ctx context.Context, value any, kind schema.Kind) (any, error)
}

// Options configures one scheduler run.
type Options struct {
	// SourceLocale is the locale translated from. Required.
	SourceLocale string
	// TargetLocales are the locales translated into. Required.
	TargetLocales []string
	// ExcludedFields are field API keys to skip.
	ExcludedFields []string
	// NewTranslator builds the translator for one target locale. Required.
	NewTranslator func(toLocale string) Translator

	// Concurrency overrides DefaultConcurrency when > 0.
	Concurrency int
	// JobPacing overrides DefaultJobPacing when set. Negative disables.
	JobPacing time.Duration
	// FlushDebounce overrides DefaultFlushDebounce when set. Negative
	// disables (every result flushes immediately).
	FlushDebounce time.Duration
	// WritePacing overrides DefaultWritePacing when set. Negative disables.
	WritePacing time.Duration

	// OnLog and OnError receive progress/diagnostic messages.
	OnLog   func(format string, args ...any)
	OnError func(format string, args ...any)
	// OnProgress is called after every finished job with (done, total).
	OnProgress func(done, total int)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

func duration(v, def time.Duration) time.Duration {
	switch {
	case v > 0:
		return v
	case v < 0:
		return 0
	default:
		return def
	}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Summary reports what one run did.
type Summary struct {
	// Jobs is the number of field × locale jobs enumerated.
	Jobs int
	// Written is the number of values stored on the host.
	Written int
	// Failed is the number of jobs that errored (their siblings continued).
	Failed int
	// Canceled reports whether the run stopped early on cancellation.
	Canceled bool
}

type job struct {
	field  schema.Field
	kind   schema.Kind
	locale string
	value  any
}

type result struct {
	key      string
	fieldKey string
	locale   string
	value    any
}

// Run translates every eligible field of the host's record into every target
// locale. Individual job failures are logged and surfaced as notices; they
// never abort the run. The returned error covers setup only (listing fields,
// missing options).
func Run(ctx context.Context, host Host, opts Options) (Summary, error) {
	if opts.NewTranslator == nil {
		return Summary{}, fmt.Errorf("scheduler: NewTranslator is required")
	}
	if opts.SourceLocale == "" || len(opts.TargetLocales) == 0 {
		return Summary{}, fmt.Errorf("scheduler: source and target locales are required")
	}

	jobs, err := enumerateJobs(host, &opts)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Jobs: len(jobs)}
	if len(jobs) == 0 {
		opts.log("nothing to translate")
		return summary, nil
	}

	translators := make(map[string]Translator, len(opts.TargetLocales))
	for _, loc := range opts.TargetLocales {
		translators[loc] = opts.NewTranslator(loc)
	}

	// The writer outlives cancellation on purpose: a translation that
	// already finished is worth keeping, so the final flush always runs.
	results := make(chan result, len(jobs))
	writerDone := make(chan writerStats, 1)
	go runWriter(context.WithoutCancel(ctx), host, &opts, results, writerDone)

	var cursor atomic.Int64
	var done atomic.Int64
	var failed atomic.Int64
	pacing := duration(opts.JobPacing, DefaultJobPacing)

	g := new(errgroup.Group)
	for w := 0; w < opts.concurrency(); w++ {
		g.Go(func() error {
			first := true
			for {
				// Cooperative cancellation: no new job starts once the
				// context is done; in-flight jobs finish naturally.
				if ctx.Err() != nil {
					return nil
				}
				i := int(cursor.Add(1)) - 1
				if i >= len(jobs) {
					return nil
				}
				if !first && pacing > 0 {
					if !sleepCtx(ctx, pacing) {
						return nil
					}
				}
				first = false

				j := jobs[i]
				runJob(ctx, host, j, translators[j.locale], &opts, results, &failed)
				opts.reportProgress(int(done.Add(1)), len(jobs))
			}
		})
	}
	g.Wait() // workers never return errors; failures are per-job

	close(results)
	stats := <-writerDone

	summary.Written = stats.written
	summary.Failed = int(failed.Load()) + stats.failed
	summary.Canceled = ctx.Err() != nil

	if summary.Written > 0 && summary.Failed == 0 && !summary.Canceled {
		host.Notify(NoticeSuccess, fmt.Sprintf("Translated %d value(s)", summary.Written))
	}
	return summary, nil
}

func (o *Options) reportProgress(done, total int) {
	if o.OnProgress != nil {
		o.OnProgress(done, total)
	}
}

// enumerateJobs builds the static job list: every eligible field crossed with
// every target locale.
func enumerateJobs(host Host, opts *Options) ([]job, error) {
	fields, err := host.Fields()
	if err != nil {
		return nil, fmt.Errorf("listing fields: %w", err)
	}

	var jobs []job
	for _, f := range fields {
		sourceValue, err := host.Value(f.APIKey, opts.SourceLocale)
		if err != nil {
			opts.logError("field %s: reading source value: %v", f.APIKey, err)
			continue
		}
		if !schema.Eligible(f, opts.ExcludedFields, sourceValue) {
			continue
		}
		kind, _ := schema.KindFor(f.EditorType)
		for _, loc := range opts.TargetLocales {
			if loc == opts.SourceLocale {
				continue
			}
			jobs = append(jobs, job{field: f, kind: kind, locale: loc, value: sourceValue})
		}
	}
	return jobs, nil
}

// runJob translates one field × locale pair and hands the result to the
// writer. Failure is logged and surfaced, never propagated.
func runJob(ctx context.Context, host Host, j job, tr Translator, opts *Options, results chan<- result, failed *atomic.Int64) {
	opts.log("translating %s → %s", j.field.APIKey, j.locale)

	out, err := tr.Translate(ctx, j.value, j.kind)
	if err != nil {
		failed.Add(1)
		opts.logError("field %s → %s: %v", j.field.APIKey, j.locale, err)
		host.Notify(NoticeError, fmt.Sprintf("Could not translate %s into %s: %v", j.field.Label, j.locale, err))
		return
	}

	results <- result{
		key:      j.field.APIKey + "." + j.locale,
		fieldKey: j.field.APIKey,
		locale:   j.locale,
		value:    out,
	}
}

// sleepCtx sleeps for d unless the context ends first. Reports whether the
// full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
