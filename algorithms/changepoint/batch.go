package changepoint

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-cusum/logging"
	"golang.org/x/sync/errgroup"
)

// DetectChannels scans independent channels in parallel, one tracker per
// channel. The first failing channel cancels the channels not yet started and
// its error is returned.
func (d *Detector) DetectChannels(ctx context.Context, channels map[string]Series) (map[string]*Result, error) {
	results := make(map[string]*Result, len(channels))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for name, series := range channels {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			chCtx := logging.ContextWithFields(gCtx, logging.Fields{"channel": name})
			res, err := (&Detector{logger: d.logger.WithContext(chCtx)}).Detect(series)
			if err != nil {
				return fmt.Errorf("channel %s: %w", name, err)
			}

			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
