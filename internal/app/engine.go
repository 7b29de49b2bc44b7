// Package service runs the deal generation pipeline over a batch of related
// license sets: plan every group concurrently, apply the plans in order, then
// refresh deal associations and report.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/dealsync/internal/adapters/inspection"
	eventqueue "github.com/okian/dealsync/internal/adapters/mq/queue"
	workerpool "github.com/okian/dealsync/internal/adapters/mq/worker"
	repository "github.com/okian/dealsync/internal/adapters/repository"
	"github.com/okian/dealsync/internal/domain/actions"
	"github.com/okian/dealsync/internal/domain/dedupe"
	"github.com/okian/dealsync/internal/domain/events"
	"github.com/okian/dealsync/internal/domain/ignored"
	"github.com/okian/dealsync/internal/domain/model"
	"github.com/okian/dealsync/internal/domain/timeline"
	"github.com/okian/dealsync/internal/domain/types"
	"github.com/okian/dealsync/pkg/logger"
	"github.com/okian/dealsync/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Plan is the outcome of planning one group.
type Plan struct {
	Index   int
	GroupID string
	Set     model.RelatedLicenseSet
	Events  []events.Event
	Actions []actions.Action
	Ignored *ignored.List
	Err     error
}

// Engine orchestrates a run. Runs are serialized.
type Engine struct {
	runMu sync.Mutex

	store      repository.Store
	directory  *repository.Directory
	inspection *inspection.Logger

	workerCount int
	queueSize   int
	trialDeals  bool
	minAmount   decimal.Decimal
	failFast    bool
	newRunID    func() string

	interpreter *events.Interpreter
	generator   *actions.Generator

	mu   sync.RWMutex
	last *types.Report

	logger logger.Logger
}

// New constructs an Engine. Without WithStore it plans against an empty
// in-memory registry.
func New(opts ...Option) *Engine {
	e := &Engine{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		minAmount:   decimal.Zero,
		failFast:    true,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Named("engine")
	}
	if e.store == nil {
		e.store = repository.NewMemStore()
	}
	e.interpreter = events.New(events.WithMinAmount(e.minAmount))
	e.generator = actions.New(actions.WithTrialDeals(e.trialDeals), actions.WithLogger(e.logger.Named("actions")))
	return e
}

// Store returns the deal registry the engine writes to.
func (e *Engine) Store() repository.Store { return e.store }

// Report returns the report of the latest finished run, or nil.
func (e *Engine) Report() *types.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// GenerateForGroup plans a single group against the current registry without
// applying anything.
func (e *Engine) GenerateForGroup(ctx context.Context, a *model.Arena, set model.RelatedLicenseSet) (*Plan, error) {
	if err := set.Validate(a); err != nil {
		return nil, err
	}
	p := e.plan(ctx, a, 0, set.TestID(a), set)
	if p.Err != nil {
		return p, p.Err
	}
	return p, nil
}

func (e *Engine) plan(ctx context.Context, a *model.Arena, index int, group string, set model.RelatedLicenseSet) *Plan {
	p := &Plan{Index: index, GroupID: group, Set: set, Ignored: &ignored.List{}}

	res, err := e.interpreter.Interpret(a, timeline.Build(a, set), p.Ignored)
	if err != nil {
		p.Err = withGroup(err, group)
		return p
	}
	p.Events = res.Events

	acts, err := e.generator.Generate(ctx, a, group, set, res.Events, e.store)
	if err != nil {
		p.Err = withGroup(err, group)
		return p
	}
	p.Actions = acts
	return p
}

// withGroup fills in the group of typed errors raised below the engine.
func withGroup(err error, group string) error {
	var inErr *model.InputError
	if errors.As(err, &inErr) && inErr.Group == "" {
		cp := *inErr
		cp.Group = group
		return &cp
	}
	var invErr *model.InvariantError
	if errors.As(err, &invErr) && invErr.Group == "" {
		cp := *invErr
		cp.Group = group
		return &cp
	}
	return err
}

// Run plans and applies every group. Input errors abort the run before any
// deal is written when fail-fast is on; otherwise the offending groups are
// skipped. Invariant violations never abort: the group's deals are left
// untouched and a warning is reported.
func (e *Engine) Run(ctx context.Context, a *model.Arena, groups []model.RelatedLicenseSet) (*types.Report, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := time.Now()
	rep := &types.Report{
		RunID:     e.newRunID(),
		StartedAt: start,
		Events:    make(map[string]int),
	}
	log := e.logger
	log.Info(ctx, "run started", logger.String("run_id", rep.RunID), logger.Int("groups", len(groups)))

	jobs, err := e.claim(ctx, a, groups, rep)
	if err != nil {
		return nil, err
	}

	plans, err := e.planAll(ctx, a, jobs, len(groups))
	if err != nil {
		return nil, err
	}

	if e.failFast {
		for _, p := range plans {
			var inErr *model.InputError
			if p != nil && errors.As(p.Err, &inErr) {
				metrics.RecordInputError()
				return nil, p.Err
			}
		}
	}

	claimDeals(plans)

	totals := ignored.NewTotals()
	var touched []actions.DealRef
	for _, p := range plans {
		if p == nil {
			continue
		}
		if e.inspection != nil {
			e.inspection.Record(ctx, a, p.GroupID, p.Set, p.Events, p.Actions, p.Ignored, p.Err)
		}
		if p.Err != nil {
			e.reject(ctx, p, rep)
			continue
		}
		rep.Groups++
		for _, ev := range p.Events {
			rep.Events[ev.Kind.String()]++
			metrics.RecordEvent(ev.Kind.String())
		}
		totals.Merge(p.Ignored)

		ref, err := e.apply(ctx, p, rep)
		if err != nil {
			return nil, err
		}
		if ref == "" {
			ref = e.dealOf(ctx, a, p.Set)
		}
		if ref != "" {
			if err := e.associate(ctx, a, p, ref); err != nil {
				return nil, err
			}
			touched = append(touched, ref)
		}
	}
	e.checkRecords(ctx, touched, rep)

	for _, row := range totals.Rows() {
		rep.Ignored = append(rep.Ignored, types.IgnoredRow{Reason: row.Reason, Count: row.Count, Amount: row.Amount})
		metrics.RecordIgnored(row.Reason, row.Count)
		metrics.UpdateIgnoredAmount(row.Reason, row.Amount.InexactFloat64())
	}
	if e.inspection != nil {
		e.inspection.SaveIgnored(totals.Lists())
	}

	rep.FinishedAt = time.Now()
	metrics.RecordRunFinished(rep.FinishedAt.Unix(), float64(rep.FinishedAt.Sub(start).Microseconds())/1000)
	log.Info(ctx, "run finished",
		logger.String("run_id", rep.RunID),
		logger.Int("groups", rep.Groups),
		logger.Int("creates", rep.Creates),
		logger.Int("updates", rep.Updates),
		logger.Int("warnings", len(rep.Warnings)),
		logger.Int("skipped", len(rep.Skipped)),
		logger.Decimal("ignored", rep.IgnoredTotal()),
		logger.Duration("took", rep.FinishedAt.Sub(start)))

	e.mu.Lock()
	e.last = rep
	e.mu.Unlock()
	return rep, nil
}

// claim validates every group and makes sure no record belongs to two of them.
func (e *Engine) claim(ctx context.Context, a *model.Arena, groups []model.RelatedLicenseSet, rep *types.Report) ([]eventqueue.Job, error) {
	claims := dedupe.NewInMemoryDeduper(dedupe.WithExpectedSize(len(a.Licenses) + len(a.Transactions)))
	jobs := make([]eventqueue.Job, 0, len(groups))
	for i, set := range groups {
		err := set.Validate(a)
		group := fmt.Sprintf("#%d", i)
		if err == nil {
			group = set.TestID(a)
			err = e.claimRecords(ctx, claims, a, group, set)
		}
		if err != nil {
			metrics.RecordInputError()
			if e.failFast {
				return nil, err
			}
			e.logger.Error(ctx, "group skipped", logger.String("group", group), logger.Error(err))
			rep.Skipped = append(rep.Skipped, types.Skipped{Group: group, Reason: err.Error()})
			continue
		}
		jobs = append(jobs, eventqueue.Job{Index: i, GroupID: group, Set: set})
	}
	return jobs, nil
}

func (e *Engine) claimRecords(ctx context.Context, claims dedupe.Deduper, a *model.Arena, group string, set model.RelatedLicenseSet) error {
	refs := set.Records()
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = ref.Kind.String() + ":" + a.SourceID(ref)
		if owner, ok := claims.Owner(ctx, keys[i]); ok {
			return &model.InputError{Group: group, Record: a.SourceID(ref), Reason: "record already claimed by group " + owner}
		}
	}
	for i, key := range keys {
		if _, dup := claims.Claim(ctx, key, group); dup {
			return &model.InputError{Group: group, Record: a.SourceID(refs[i]), Reason: "record listed twice in the group"}
		}
	}
	return nil
}

// planAll runs every job through the worker pool and returns the plans by
// group index. Slots of skipped groups stay nil.
func (e *Engine) planAll(ctx context.Context, a *model.Arena, jobs []eventqueue.Job, groups int) ([]*Plan, error) {
	planner := &batchPlanner{engine: e, arena: a, plans: make([]*Plan, groups)}
	if len(jobs) == 0 {
		return planner.plans, nil
	}

	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(e.queueSize))
	workers := e.workerCount
	if workers > len(jobs) {
		workers = len(jobs)
	}
	pool := workerpool.NewPool(workers, q, planner)
	pool.Start(ctx)

	for _, j := range jobs {
		j.EnqueuedAt = time.Now()
		if err := q.Enqueue(ctx, j); err != nil {
			_ = pool.Shutdown(context.Background())
			return nil, fmt.Errorf("enqueue group %s: %w", j.GroupID, err)
		}
	}
	if err := q.Close(); err != nil {
		return nil, fmt.Errorf("close queue: %w", err)
	}
	if err := pool.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for planners: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return planner.plans, nil
}

// batchPlanner stores each plan in its group's slot; slots are never shared
// between jobs.
type batchPlanner struct {
	engine *Engine
	arena  *model.Arena
	plans  []*Plan
}

func (b *batchPlanner) Plan(ctx context.Context, job eventqueue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	p := b.engine.plan(ctx, b.arena, job.Index, job.GroupID, job.Set)
	b.plans[job.Index] = p
	metrics.RecordPlanningLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordGroupProcessed()
	return p.Err
}

// claimDeals fails every plan that would update a deal an earlier group
// already updates. Plans are built against the registry as it was before the
// run, so a second write would overwrite the first group's properties.
func claimDeals(plans []*Plan) {
	owners := make(map[actions.DealRef]string)
	for _, p := range plans {
		if p == nil || p.Err != nil {
			continue
		}
		for _, act := range p.Actions {
			if act.Kind != actions.UpdateDeal || act.Deal == "" {
				continue
			}
			if owner, ok := owners[act.Deal]; ok && owner != p.GroupID {
				p.Err = &model.InvariantError{
					Group:  p.GroupID,
					Deal:   string(act.Deal),
					Reason: "deal is also updated by group " + owner,
				}
				break
			}
			owners[act.Deal] = p.GroupID
		}
	}
}

func (e *Engine) reject(ctx context.Context, p *Plan, rep *types.Report) {
	var invErr *model.InvariantError
	if errors.As(p.Err, &invErr) {
		metrics.RecordInvariantViolation()
		e.logger.Error(ctx, "invariant violation; deals left untouched",
			logger.String("group", p.GroupID),
			logger.String("deal", invErr.Deal),
			logger.String("reason", invErr.Reason))
		rep.Warnings = append(rep.Warnings, types.Warning{Group: p.GroupID, Deal: invErr.Deal, Reason: invErr.Reason})
		return
	}
	metrics.RecordInputError()
	e.logger.Error(ctx, "group skipped", logger.String("group", p.GroupID), logger.Error(p.Err))
	rep.Skipped = append(rep.Skipped, types.Skipped{Group: p.GroupID, Reason: p.Err.Error()})
}

// apply writes a plan's actions and returns the deal they targeted.
func (e *Engine) apply(ctx context.Context, p *Plan, rep *types.Report) (actions.DealRef, error) {
	var ref actions.DealRef
	for _, act := range p.Actions {
		switch act.Kind {
		case actions.CreateDeal:
			created, err := e.store.Create(ctx, act.Properties)
			if err != nil {
				return "", fmt.Errorf("%w: group %s: %v", ErrApply, p.GroupID, err)
			}
			ref = created
			rep.Creates++
			e.logger.Debug(ctx, "deal created", logger.String("group", p.GroupID), logger.String("deal", string(ref)))
		case actions.UpdateDeal:
			target := act.Deal
			if target == "" {
				target = ref
			}
			if err := e.store.Update(ctx, target, act.Properties); err != nil {
				return "", fmt.Errorf("%w: group %s: %v", ErrApply, p.GroupID, err)
			}
			ref = target
			rep.Updates++
			e.logger.Debug(ctx, "deal updated",
				logger.String("group", p.GroupID),
				logger.String("deal", string(target)),
				logger.Strings("changes", act.Changes))
		default:
			return "", fmt.Errorf("%w: group %s: unknown action kind %d", ErrApply, p.GroupID, act.Kind)
		}
		metrics.RecordAction(act.Kind.String())
	}
	return ref, nil
}

// dealOf finds the existing deal of a group that needed no action.
func (e *Engine) dealOf(ctx context.Context, a *model.Arena, set model.RelatedLicenseSet) actions.DealRef {
	for _, lid := range set.LicenseIDs() {
		ref, ok, err := e.store.Lookup(ctx, a.License(lid).SourceID)
		if err == nil && ok {
			return ref
		}
	}
	return ""
}

// checkRecords reports deals the run touched that no longer point at any
// marketplace record.
func (e *Engine) checkRecords(ctx context.Context, refs []actions.DealRef, rep *types.Report) {
	for _, ref := range refs {
		d, err := e.store.Get(ctx, ref)
		if err != nil || len(d.Properties.LicenseIDs) > 0 {
			continue
		}
		metrics.RecordInvariantViolation()
		e.logger.Error(ctx, "deal has no associated marketplace records", logger.String("deal", string(ref)))
		rep.Warnings = append(rep.Warnings, types.Warning{Deal: string(ref), Reason: "deal has no associated marketplace records"})
	}
}
