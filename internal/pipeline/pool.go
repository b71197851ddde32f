// Package pipeline runs file jobs on a bounded worker pool.
package pipeline

import (
	"context"
	"sync"

	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

// DefaultWorkerCount is used when a caller asks for fewer than one worker.
const DefaultWorkerCount = 4

// FileJob is one path to process and its position in the submitted list.
type FileJob struct {
	Index int
	Path  string
}

// ProcessFiles applies fn to every path using workerCount goroutines and
// returns the results in submission order. A job that is never started
// because ctx was cancelled leaves the zero value of R in its slot; the
// returned error is then ctx.Err().
func ProcessFiles[R any](ctx context.Context, workerCount int, paths []string, fn func(ctx context.Context, path string) R) ([]R, error) {
	if workerCount < 1 {
		workerCount = DefaultWorkerCount
	}
	if workerCount > len(paths) {
		workerCount = len(paths)
	}

	log := logger.Component("pipeline")
	results := make([]R, len(paths))
	jobChan := make(chan FileJob, len(paths))
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				log.Debug().Int("worker", workerID).Str("path", job.Path).Msg("processing file")
				results[job.Index] = fn(ctx, job.Path)
			}
		}(i)
	}

	var err error
enqueue:
	for i, p := range paths {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break enqueue
		case jobChan <- FileJob{Index: i, Path: p}:
		}
	}
	close(jobChan)

	wg.Wait()
	return results, err
}
