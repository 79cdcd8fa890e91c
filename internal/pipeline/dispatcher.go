package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/member-insights/internal/claims"
	"github.com/ziadkadry99/member-insights/internal/insight"
	"github.com/ziadkadry99/member-insights/internal/logger"
	"github.com/ziadkadry99/member-insights/internal/progress"
)

// ContactRunner processes one contact end to end.
type ContactRunner interface {
	ProcessContact(ctx context.Context, contactID string) ContactOutcome
}

// ContactSource pages through the prioritized candidate list.
type ContactSource interface {
	ListPrioritizedContacts(ctx context.Context, cutoff time.Time, limit, offset int) ([]string, error)
}

// Dispatcher schedules contacts across a bounded worker pool. Each
// wave drains finished workers, then refills free capacity from the
// source, offset by how many contacts were ever scheduled. Candidates
// are re-queried per wave rather than pre-loaded so long runs pick up
// newly eligible contacts and skip ones another run has claimed.
type Dispatcher struct {
	log      *logger.Logger
	runner   ContactRunner
	source   ContactSource
	claimer  claims.Coordinator
	reporter progress.Reporter

	generator   string
	maxWorkers  int
	batchSize   int
	maxContacts int
	claimTTL    time.Duration
	cutoff      time.Time
	holder      string
}

// NewDispatcher wires a dispatcher. maxContacts of 0 means unlimited.
func NewDispatcher(log *logger.Logger, runner ContactRunner, source ContactSource, claimer claims.Coordinator, reporter progress.Reporter, generator string, maxWorkers, batchSize, maxContacts int, claimTTL time.Duration, cutoff time.Time) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	if reporter == nil {
		reporter = progress.NullReporter{}
	}
	return &Dispatcher{
		log:         log,
		runner:      runner,
		source:      source,
		claimer:     claimer,
		reporter:    reporter,
		generator:   generator,
		maxWorkers:  maxWorkers,
		batchSize:   batchSize,
		maxContacts: maxContacts,
		claimTTL:    claimTTL,
		cutoff:      cutoff,
		holder:      uuid.NewString(),
	}
}

// Run executes waves until the source is exhausted and all workers
// have drained.
func (d *Dispatcher) Run(ctx context.Context) RunSummary {
	summary := RunSummary{
		RunID:     d.holder,
		Generator: d.generator,
		StartedAt: time.Now().UTC(),
	}

	results := make(chan ContactOutcome)
	inFlight := make(map[string]struct{})
	seen := make(map[string]struct{})

	if d.maxContacts > 0 {
		d.reporter.Start(d.maxContacts)
	}

	for {
		submitted, err := d.refill(ctx, results, inFlight, seen)
		if err != nil {
			d.log.Error("candidate selection failed", "error", err)
			summary.Errors = append(summary.Errors, err.Error())
		}

		if len(inFlight) == 0 {
			if submitted == 0 {
				break
			}
			continue
		}

		select {
		case outcome := <-results:
			delete(inFlight, outcome.ContactID)
			summary.record(outcome)
			d.reporter.Update(summary.ContactsTotal, outcome.ContactID)
		case <-ctx.Done():
			for len(inFlight) > 0 {
				outcome := <-results
				delete(inFlight, outcome.ContactID)
				summary.record(outcome)
			}
			summary.Errors = append(summary.Errors, ctx.Err().Error())
			summary.FinishedAt = time.Now().UTC()
			d.reporter.Finish()
			return summary
		}
	}

	summary.FinishedAt = time.Now().UTC()
	d.reporter.Finish()
	d.log.Info("dispatch complete",
		"contacts", summary.ContactsTotal,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
	return summary
}

// refill submits new candidates into free capacity. The query offset
// is the number of contacts ever scheduled, so earlier pages are not
// re-fetched even when their contacts have finished.
func (d *Dispatcher) refill(ctx context.Context, results chan<- ContactOutcome, inFlight, seen map[string]struct{}) (int, error) {
	capacity := d.maxWorkers - len(inFlight)
	if capacity <= 0 {
		return 0, nil
	}
	if d.maxContacts > 0 {
		remaining := d.maxContacts - len(seen)
		if remaining <= 0 {
			return 0, nil
		}
		if capacity > remaining {
			capacity = remaining
		}
	}

	limit := d.batchSize
	if limit > capacity {
		limit = capacity
	}

	candidates, err := d.source.ListPrioritizedContacts(ctx, d.cutoff, limit, len(seen))
	if err != nil {
		return 0, fmt.Errorf("listing candidates: %w", err)
	}

	submitted := 0
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		inFlight[id] = struct{}{}
		submitted++
		go d.work(ctx, id, results)
	}
	return submitted, nil
}

// work claims a contact and runs it, always releasing the claim. A
// denied claim yields a skipped outcome without touching the contact.
func (d *Dispatcher) work(ctx context.Context, contactID string, results chan<- ContactOutcome) {
	key := insight.ClaimKey(contactID)

	ok, err := d.claimer.Acquire(ctx, key, d.claimTTL, d.holder)
	if err != nil {
		d.log.Warn("claim acquisition errored, skipping contact", "contact_id", contactID, "error", err)
		results <- ContactOutcome{ContactID: contactID, Status: StatusSkipped}
		return
	}
	if !ok {
		d.log.Debug("contact claimed elsewhere, skipping", "contact_id", contactID)
		results <- ContactOutcome{ContactID: contactID, Status: StatusSkipped}
		return
	}

	var outcome ContactOutcome
	func() {
		defer func() {
			if relErr := d.claimer.Release(ctx, key); relErr != nil {
				d.log.Warn("claim release failed", "contact_id", contactID, "error", relErr)
			}
		}()
		outcome = d.runner.ProcessContact(ctx, contactID)
	}()

	results <- outcome
}

// RunSequential processes an explicit contact list one at a time with
// no claim overhead, for small targeted runs and when parallelism is
// disabled.
func (d *Dispatcher) RunSequential(ctx context.Context, contactIDs []string) RunSummary {
	summary := RunSummary{
		RunID:     d.holder,
		Generator: d.generator,
		StartedAt: time.Now().UTC(),
	}

	d.reporter.Start(len(contactIDs))
	for _, id := range contactIDs {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, ctx.Err().Error())
			break
		}
		outcome := d.runner.ProcessContact(ctx, id)
		summary.record(outcome)
		d.reporter.Update(summary.ContactsTotal, id)
	}
	d.reporter.Finish()

	summary.FinishedAt = time.Now().UTC()
	return summary
}
