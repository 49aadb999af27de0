// Package batch analyzes every supported media file under a path with a
// pool of workers, streaming progress to an optional channel.
package batch

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/humanmark/forensics/internal/service"
)

// sniffLen covers every magic number the detector knows, including the
// third MPEG-TS sync byte at offset 376.
const sniffLen = 512

type Options struct {
	// Workers defaults to runtime.NumCPU.
	Workers int
}

type Job struct {
	Path    string
	RelPath string
}

type Result struct {
	Path     string                  `json:"path"`
	RelPath  string                  `json:"relPath"`
	Analysis *service.AnalysisResult `json:"analysis,omitempty"`
	Err      error                   `json:"-"`
}

type Summary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	AI        int `json:"ai"`
	Real      int `json:"real"`
	Uncertain int `json:"uncertain"`
}

type ProgressUpdate struct {
	TotalDelta     int
	ProcessedDelta int
	ErrorDelta     int
	Verdict        service.Verdict
	File           string
}

// Run analyzes root, a file or a directory, with det. Files that are neither
// image nor video are skipped silently. Results are sorted by RelPath. The
// caller owns updates and closes it after Run returns.
func Run(ctx context.Context, root string, det service.Detector, opts Options, updates chan<- ProgressUpdate) (Summary, []Result, error) {
	summary := Summary{}
	var results []Result

	info, err := os.Stat(root)
	if err != nil {
		return summary, nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return summary, nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan Job)
	out := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, det, jobs, out, updates)
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range out {
			summary.Total++
			update := ProgressUpdate{File: res.RelPath}
			if res.Err != nil {
				summary.Errors++
				update.ErrorDelta = 1
			} else {
				summary.Processed++
				update.ProcessedDelta = 1
				update.Verdict = res.Analysis.Verdict
				switch res.Analysis.Verdict {
				case service.VerdictAI:
					summary.AI++
				case service.VerdictReal:
					summary.Real++
				default:
					summary.Uncertain++
				}
			}
			if updates != nil {
				updates <- update
			}
			results = append(results, res)
		}
	}()

	producerErr := make(chan error, 1)
	go func() {
		defer close(jobs)

		sendJob := func(job Job) error {
			select {
			case jobs <- job:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if !info.IsDir() {
			producerErr <- sendJob(Job{Path: absRoot, RelPath: filepath.Base(absRoot)})
			return
		}

		err := fs.WalkDir(os.DirFS(absRoot), ".", func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			return sendJob(Job{Path: filepath.Join(absRoot, path), RelPath: path})
		})
		producerErr <- err
	}()

	wg.Wait()
	close(out)
	<-collectorDone

	sort.Slice(results, func(i, j int) bool { return results[i].RelPath < results[j].RelPath })

	if err := <-producerErr; err != nil {
		return summary, results, err
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return summary, results, err
	}

	return summary, results, nil
}

func worker(ctx context.Context, det service.Detector, jobs <-chan Job, out chan<- Result, updates chan<- ProgressUpdate) {
	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		supported, err := sniff(job.Path)
		if err == nil && !supported {
			continue
		}
		if updates != nil {
			updates <- ProgressUpdate{TotalDelta: 1, File: job.RelPath}
		}

		res := Result{Path: job.Path, RelPath: job.RelPath}
		if err != nil {
			res.Err = err
			out <- res
			continue
		}

		data, err := os.ReadFile(job.Path)
		if err != nil {
			res.Err = err
			out <- res
			continue
		}

		res.Analysis, res.Err = det.Analyze(ctx, service.DetectionInput{
			Data:     data,
			Filename: filepath.Base(job.Path),
		})
		out <- res
	}
}

// sniff reports whether path looks like an image or video, by magic bytes
// first and extension second.
func sniff(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}

	ct := service.DetectContentType(service.DetectionInput{
		Data:     head[:n],
		Filename: filepath.Base(path),
	})
	return ct != service.ContentTypeUnknown, nil
}
