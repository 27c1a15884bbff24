// Package aliasremover batches alias deletion requests and applies them
// in the background. Ownership is enforced by the storage layer when
// the batch is flushed, so a queued code belonging to another user is
// silently skipped.
package aliasremover

import (
	"context"
	"time"

	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
)

type task struct {
	ownerID      string
	codeToDelete string
}

type aliasesKeeper interface {
	DeleteOwnerAliases(ctx context.Context, ownersCodes map[string][]string) error
}

// AliasRemover accumulates deletion tasks on a channel and flushes them
// to storage on a fixed interval.
type AliasRemover struct {
	queue                    chan *task
	db                       aliasesKeeper
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
}

// New returns an AliasRemover with the given queue capacity and flush
// interval.
func New(
	db aliasesKeeper,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
) *AliasRemover {
	return &AliasRemover{
		db:                       db,
		queue:                    make(chan *task, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
	}
}

// Run starts the background flush loop. It stops when ctx is
// cancelled, closing the error channel so ListenErrors callbacks
// terminate with it.
func (r *AliasRemover) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.delayBetweenQueueFetches)
		defer ticker.Stop()
		defer close(r.errorChannel)

		var tasks []task

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-r.queue:
				tasks = append(tasks, *t)
			case <-ticker.C:
				if len(tasks) == 0 {
					continue
				}
				err := r.db.DeleteOwnerAliases(ctx, collectCodesByOwner(tasks))
				if err != nil {
					select {
					case r.errorChannel <- err:
					case <-ctx.Done():
						return
					}
					continue
				}
				logger.Log.Infof("processed removing of %d aliases", len(tasks))
				tasks = nil
			}
		}
	}()
}

// ListenErrors forwards flush errors to the given callback.
func (r *AliasRemover) ListenErrors(callback func(error)) {
	go func() {
		for err := range r.errorChannel {
			callback(err)
		}
	}()
}

// EnqueueJob splits a batch deletion job into per-code tasks.
func (r *AliasRemover) EnqueueJob(job *models.AliasDeleteJob) {
	for _, code := range job.CodesToDelete {
		r.queue <- &task{
			ownerID:      job.OwnerID,
			codeToDelete: code,
		}
	}
}

func collectCodesByOwner(tasks []task) map[string][]string {
	result := map[string][]string{}
	for _, t := range tasks {
		result[t.ownerID] = append(result[t.ownerID], t.codeToDelete)
	}

	return result
}
