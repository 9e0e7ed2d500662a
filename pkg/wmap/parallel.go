package wmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
)

// BatchOptions controls parallel batch conversion and error handling.
type BatchOptions struct {
	// Parallel enables concurrent conversion across files. Processing
	// within one file is always sequential.
	Parallel bool

	// Workers is the number of concurrent converters. 0 means
	// runtime.NumCPU(). Only used when Parallel is true.
	Workers int

	// SkipErrors keeps the batch going when individual files fail; their
	// outcomes carry the error. When false, the first failure cancels
	// the remaining work.
	SkipErrors bool

	// Progress, if set, is called after each file completes with
	// (done, total).
	Progress func(done, total int)

	// ErrorLog, if set, receives one line per failed file.
	ErrorLog io.Writer
}

// DefaultBatchOptions returns batch options with sensible defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		Parallel:   true,
		Workers:    runtime.NumCPU(),
		SkipErrors: true,
	}
}

// BatchResult is one file's independent outcome.
type BatchResult struct {
	Path      string
	Converter *Converter // nil when Err is set
	Err       error
}

// ConvertBatch converts many files with a fixed-size worker pool. Each
// file's pipeline is independent and shares no mutable state with its
// siblings, so a failure in one file never aborts the others (unless
// SkipErrors is false). Results are returned in input order.
func ConvertBatch(ctx context.Context, paths []string, opts Options, batch BatchOptions) ([]BatchResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	results := make([]BatchResult, len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	if !batch.Parallel {
		return convertBatchSerial(ctx, paths, opts, batch)
	}

	workers := batch.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	done := make(chan int, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				results[index] = convertOne(ctx, paths[index], opts)
				if results[index].Err != nil && !batch.SkipErrors {
					cancel()
				}
				done <- index
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	completed := 0
	for completed < len(paths) {
		select {
		case index := <-done:
			completed++
			reportOutcome(&results[index], batch, completed, len(paths))
		case <-ctx.Done():
			wg.Wait()
			// Drain outcomes that finished during shutdown.
			for {
				select {
				case index := <-done:
					completed++
					reportOutcome(&results[index], batch, completed, len(paths))
				default:
					return results, batchError(results, ctx.Err())
				}
			}
		}
	}
	wg.Wait()
	if !batch.SkipErrors {
		// A failure may have raced the remaining jobs to completion; the
		// batch still reports it.
		return results, batchError(results, nil)
	}
	return results, nil
}

// convertBatchSerial converts files one at a time.
func convertBatchSerial(ctx context.Context, paths []string, opts Options, batch BatchOptions) ([]BatchResult, error) {
	results := make([]BatchResult, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results[i] = convertOne(ctx, path, opts)
		reportOutcome(&results[i], batch, i+1, len(paths))
		if results[i].Err != nil && !batch.SkipErrors {
			return results, results[i].Err
		}
	}
	return results, nil
}

// convertOne runs one file's pipeline to completion.
func convertOne(ctx context.Context, path string, opts Options) BatchResult {
	res := BatchResult{Path: path}
	conv, err := NewConverter(path, opts)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", path, err)
		return res
	}
	if _, err := conv.FeatureCount(ctx); err != nil {
		res.Err = fmt.Errorf("%s: %w", path, err)
		return res
	}
	res.Converter = conv
	return res
}

// batchError picks the error to surface after an aborted batch. Jobs
// cut short by the abort fail with cancellation errors of their own, so
// the file that actually caused it is preferred regardless of input
// order.
func batchError(results []BatchResult, ctxErr error) error {
	var cancelled error
	for i := range results {
		err := results[i].Err
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if cancelled == nil {
				cancelled = err
			}
			continue
		}
		return err
	}
	if cancelled != nil {
		return cancelled
	}
	return ctxErr
}

func reportOutcome(res *BatchResult, batch BatchOptions, done, total int) {
	if res.Err != nil && batch.ErrorLog != nil {
		fmt.Fprintf(batch.ErrorLog, "conversion failed: %v\n", res.Err)
	}
	if batch.Progress != nil {
		batch.Progress(done, total)
	}
}
