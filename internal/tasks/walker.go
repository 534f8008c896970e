package tasks

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/shared"
)

const (
	DefaultWorkers   = 4
	MaxWorkers       = 10
	DefaultRateLimit = 5.0
)

// Lister lists one page of a remote directory.
type Lister interface {
	List(ctx context.Context, req models.ListRequest) (*models.ListResult, error)
}

// WalkOpts contains configuration for a tree walk.
type WalkOpts struct {
	Workers   int     // Concurrent listers (default: 4, max: 10)
	RateLimit float64 // List requests per second (default: 5)
	PerPage   int     // Page size, 0 lists each directory in one request
	MaxDepth  int     // Levels to list below root, 0 for unlimited
	Password  string  // Folder password sent with every request
	Refresh   bool    // Ask the server to bypass its listing cache
}

func (o WalkOpts) withDefaults() WalkOpts {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Workers > MaxWorkers {
		o.Workers = MaxWorkers
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	return o
}

// DirError records a directory that could not be listed.
type DirError struct {
	Path    string `json:"path"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e DirError) Error() string { return e.Path + ": " + e.Message }

func (e DirError) Unwrap() error { return e.Err }

// WalkResult is a flattened remote tree, sorted by path.
type WalkResult struct {
	Root        string          `json:"root"`
	Entries     []models.Object `json:"entries"`
	Directories int             `json:"directories"`
	Files       int             `json:"files"`
	TotalSize   int64           `json:"total_size"`
	Errors      []DirError      `json:"errors,omitempty"`
}

type dirJob struct {
	path  string
	depth int
}

type dirResult struct {
	job     dirJob
	entries []models.Object
	err     error
}

// Walker lists remote trees with a bounded pool of workers.
type Walker struct {
	lister Lister
	logger *log.Logger
}

// NewWalker creates a [Walker] backed by l. A nil logger discards output.
func NewWalker(l Lister, logger *log.Logger) *Walker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Walker{lister: l, logger: logger}
}

// Walk lists root and every directory below it, up to opts.MaxDepth levels.
//
// Directories are handed to opts.Workers goroutines sharing one rate limiter.
// A directory that fails to list is recorded in [WalkResult.Errors] and the walk
// continues, except for root itself. When ctx is cancelled the entries gathered
// so far are returned together with ctx's error.
func (w *Walker) Walk(ctx context.Context, progress chan<- ProgressUpdate, root string, opts WalkOpts) (*WalkResult, error) {
	if w.lister == nil {
		return nil, fmt.Errorf("%w: lister not initialized", shared.ErrServiceUnavailable)
	}

	opts = opts.withDefaults()
	root = shared.CleanRemotePath(root)
	result := &WalkResult{Root: root, Entries: []models.Object{}}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan dirJob)
	// In-flight jobs never exceed the worker count, so workers never block on send.
	results := make(chan dirResult, opts.Workers)

	var wg sync.WaitGroup
	for range opts.Workers {
		wg.Add(1)
		go w.worker(ctx, &wg, limiter, jobs, results, opts)
	}

	queue := []dirJob{{path: root}}
	discovered, done, inflight := 1, 0, 0
	var walkErr error

loop:
	for len(queue) > 0 || inflight > 0 {
		var send chan<- dirJob
		var next dirJob
		if len(queue) > 0 {
			send = jobs
			next = queue[0]
		}

		select {
		case send <- next:
			queue = queue[1:]
			inflight++
			sendProgress(progress, listingUpdate(done+inflight, discovered, next.path))

		case res := <-results:
			inflight--
			done++

			if res.err != nil {
				if res.job.path == root {
					walkErr = fmt.Errorf("failed to list %s: %w", root, res.err)
					break loop
				}
				w.logger.Warn("list failed", "path", res.job.path, "err", res.err)
				result.Errors = append(result.Errors, DirError{Path: res.job.path, Message: res.err.Error(), Err: res.err})
				sendProgress(progress, listFailedUpdate(done, discovered, res.job.path, res.err))
				continue
			}

			result.Directories++
			for _, obj := range res.entries {
				if obj.Path == "" {
					obj.Path = shared.JoinRemotePath(res.job.path, obj.Name)
				}
				result.Entries = append(result.Entries, obj)

				if !obj.IsDir {
					result.Files++
					result.TotalSize += obj.Size
					continue
				}
				if opts.MaxDepth == 0 || res.job.depth+1 < opts.MaxDepth {
					queue = append(queue, dirJob{path: obj.Path, depth: res.job.depth + 1})
					discovered++
				}
			}
			sendProgress(progress, listedUpdate(done, discovered, res.job.path, len(res.entries)))

		case <-ctx.Done():
			walkErr = ctx.Err()
			break loop
		}
	}

	close(jobs)
	wg.Wait()

	if walkErr != nil && result.Directories == 0 {
		return nil, walkErr
	}

	slices.SortFunc(result.Entries, func(a, b models.Object) int { return cmp.Compare(a.Path, b.Path) })
	slices.SortFunc(result.Errors, func(a, b DirError) int { return cmp.Compare(a.Path, b.Path) })

	if walkErr != nil {
		return result, walkErr
	}

	w.logger.Debug("walk complete", "root", root, "dirs", result.Directories, "files", result.Files)
	sendProgress(progress, walkCompleteUpdate(result))
	return result, nil
}

// worker lists directories from jobs until the channel is closed.
func (w *Walker) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan dirJob,
	results chan<- dirResult,
	opts WalkOpts,
) {
	defer wg.Done()

	for job := range jobs {
		entries, err := w.list(ctx, limiter, job.path, opts)
		results <- dirResult{job: job, entries: entries, err: err}
	}
}

// list fetches every page of path.
func (w *Walker) list(ctx context.Context, limiter *rate.Limiter, path string, opts WalkOpts) ([]models.Object, error) {
	var entries []models.Object
	for page := 1; ; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		res, err := w.lister.List(ctx, models.ListRequest{
			Path:     path,
			Password: opts.Password,
			Page:     page,
			PerPage:  opts.PerPage,
			Refresh:  opts.Refresh && page == 1,
		})
		if err != nil {
			return nil, err
		}

		entries = append(entries, res.Content...)
		if opts.PerPage <= 0 || len(res.Content) == 0 || len(entries) >= res.Total {
			return entries, nil
		}
	}
}
