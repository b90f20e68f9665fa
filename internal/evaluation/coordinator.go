package evaluation

import (
	"context"
	"fmt"
	"sync"

	"guess-the-prompt/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	reasonHandleFailed = "Evaluation failed"
	reasonBatchFailed  = "Batch evaluation failed"
)

// Scorer evaluates one prompt against one image and never fails.
type Scorer interface {
	Evaluate(ctx context.Context, prompt, imageRef string, imageID int) domain.ScoreResult
}

// Pending is an in-flight evaluation. Its result is readable once Done is closed.
type Pending struct {
	ImageID int
	Prompt  string

	done   chan struct{}
	result domain.ScoreResult
}

// Done is closed when the evaluation settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled result; it must only be called after Done is closed.
func (p *Pending) Result() domain.ScoreResult {
	return p.result
}

// Coordinator starts evaluations without blocking and joins them later.
type Coordinator struct {
	scorer Scorer
	base   context.Context
	wg     sync.WaitGroup
}

// NewCoordinator builds a coordinator. Evaluations run under base, not under
// the caller's context, so a started batch always runs to completion.
func NewCoordinator(base context.Context, scorer Scorer) *Coordinator {
	return &Coordinator{scorer: scorer, base: base}
}

// Start fires the evaluation immediately and returns its handle.
func (c *Coordinator) Start(prompt, imageRef string, imageID int) *Pending {
	p := &Pending{ImageID: imageID, Prompt: prompt, done: make(chan struct{})}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Int("image_id", imageID).Interface("panic", r).Msg("evaluation panicked")
				p.result = domain.FailedResult(prompt, imageID, fmt.Sprintf("%s: %v", reasonHandleFailed, r))
			}
		}()
		p.result = c.scorer.Evaluate(c.base, prompt, imageRef, imageID)
	}()
	return p
}

// JoinAll waits for every handle and returns one result per handle, in order.
// When the wait itself fails every handle gets a synthetic failure result.
func (c *Coordinator) JoinAll(ctx context.Context, pending []*Pending) []domain.ScoreResult {
	results := make([]domain.ScoreResult, len(pending))
	if len(pending) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pending {
		if p == nil {
			results[i] = domain.FailedResult("", 0, reasonHandleFailed)
			continue
		}
		i, p := i, p
		g.Go(func() error {
			select {
			case <-p.Done():
				results[i] = p.Result()
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Int("pending", len(pending)).Msg("batch join failed")
		for i, p := range pending {
			if p == nil {
				results[i] = domain.FailedResult("", 0, reasonBatchFailed)
				continue
			}
			results[i] = domain.FailedResult(p.Prompt, p.ImageID, reasonBatchFailed)
		}
		return results
	}

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	log.Info().Int("successful", ok).Int("failed", len(results)-ok).Msg("batch joined")
	return results
}

// Wait blocks until every started evaluation returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
