package session

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/tankbot/protocol"
)

// DefaultWorkers is the number of decoders used when Pipeline.Workers is
// not set.
const DefaultWorkers = 4

// Pipeline decodes frames in parallel and folds them into a Session in the
// order they arrived.
type Pipeline struct {
	Session *Session
	Workers int
	Logger  *slog.Logger
}

type job struct {
	seq   uint64
	frame string
}

type decoded struct {
	seq   uint64
	frame string
	msg   protocol.Message
	err   error
}

// Run consumes frames until the channel is closed or ctx is done. Each
// folded step, failed or not, is handed to out in arrival order; a non-nil
// error from out stops the pipeline and is returned.
func (p *Pipeline) Run(ctx context.Context, frames <-chan string, out func(Step) error) error {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan job, workers)
	results := make(chan decoded, workers)

	g.Go(func() error {
		defer close(jobs)
		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame, ok := <-frames:
				if !ok {
					return nil
				}
				select {
				case jobs <- job{seq: seq, frame: frame}:
				case <-ctx.Done():
					return ctx.Err()
				}
				seq++
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				msg, err := protocol.Decode(j.frame)
				select {
				case results <- decoded{seq: j.seq, frame: j.frame, msg: msg, err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	g.Go(func() error {
		// Frames decoded out of order wait here until every earlier frame
		// has been folded. The buffers and the worker count bound its size.
		pending := make(map[uint64]decoded, workers*3)
		var next uint64
		for d := range results {
			pending[d.seq] = d
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++

				step, err := p.Session.fold(r.frame, r.msg, r.err)
				if err != nil {
					logger.Debug("frame not applied", "seq", step.Seq, "frame", r.frame, "error", err)
				}
				if err := out(step); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return g.Wait()
}
