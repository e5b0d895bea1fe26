package cripak

import (
	"fmt"
	"os"
	"runtime"
	"sync"
)

// extractJob carries one entry through the worker pool.
type extractJob struct {
	File  *CpkFile
	Index int
}

// extractResult reports one finished entry.
type extractResult struct {
	Index int
	Path  string
	Err   error
}

// ExtractAll extracts every entry and hands the bytes to fn. Readers opened
// by path fan the work out over workers goroutines, each with its own file
// handle; stream-backed readers extract serially. fn is called from worker
// goroutines and must be safe for concurrent use. workers <= 0 picks a
// default from the CPU count.
func (r *CpkReader) ExtractAll(workers int, fn func(*CpkFile, []byte) error) error {
	files, err := r.Files()
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = min(runtime.NumCPU()*2, 10)
	}
	if workers > len(files) {
		workers = len(files)
	}
	if r.path == "" || workers <= 1 {
		for _, f := range files {
			data, err := r.ExtractFile(f)
			if err != nil {
				return err
			}
			if err := fn(f, data); err != nil {
				return err
			}
		}
		return nil
	}

	jobs := make(chan extractJob, len(files))
	results := make(chan extractResult, len(files))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.extractionWorker(jobs, results, fn)
		}()
	}

	for i, f := range files {
		jobs <- extractJob{File: f, Index: i}
	}
	close(jobs)

	wg.Wait()
	close(results)

	var firstErr error
	for result := range results {
		if result.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("file %s: %w", result.Path, result.Err)
		}
	}
	return firstErr
}

// extractionWorker opens its own handle on the archive and drains the job
// channel through it.
func (r *CpkReader) extractionWorker(jobs <-chan extractJob, results chan<- extractResult, fn func(*CpkFile, []byte) error) {
	handle, err := os.Open(r.path)
	if err != nil {
		for job := range jobs {
			results <- extractResult{
				Index: job.Index,
				Path:  job.File.Path(),
				Err:   fmt.Errorf("failed to open archive: %w", err),
			}
		}
		return
	}
	defer handle.Close()

	for job := range jobs {
		data, err := extractFrom(handle, job.File, r.decryptor)
		if err == nil {
			err = fn(job.File, data)
		}
		results <- extractResult{Index: job.Index, Path: job.File.Path(), Err: err}
	}
}
