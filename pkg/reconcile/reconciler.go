package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/observability"
	"github.com/digital-lions/backend/pkg/rbac"
)

// AssignmentLister is the slice of the role store the reconciler needs.
type AssignmentLister interface {
	ListByUser(ctx context.Context, userID string) ([]rbac.Assignment, error)
}

// Reconciler compares per-user role names between the local store and
// the identity provider and repairs the provider side. The local store
// is the source of truth and is never written here.
type Reconciler struct {
	store   AssignmentLister
	idp     idp.Client
	log     *observability.Logger
	metrics *observability.Metrics

	cron  *cron.Cron
	runID cron.EntryID
}

// New creates a reconciler. metrics may be nil.
func New(store AssignmentLister, client idp.Client, log *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{store: store, idp: client, log: log, metrics: metrics}
}

// reconcileConcurrency bounds concurrent per-user provider calls so a
// large tenant does not exhaust the Auth0 management API quota.
const reconcileConcurrency = 4

// Result summarizes one reconciliation run.
type Result struct {
	Users       int
	Added       int
	Removed     int
	Divergences int
}

// Run reconciles every known user once.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	users, err := r.idp.ListUsers(ctx)
	if err != nil {
		r.countRun("error")
		return nil, fmt.Errorf("listing users: %w", err)
	}

	result := &Result{Users: len(users)}
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(reconcileConcurrency)
	for _, user := range users {
		userID := user.ID
		group.Go(func() error {
			added, removed, err := r.reconcileUser(groupCtx, userID)
			if err != nil {
				// Keep going; one unreachable user must not abort the run.
				r.log.WithError(err).WithField("user_id", userID).Warn("reconcile failed for user")
				return nil
			}
			mu.Lock()
			result.Added += added
			result.Removed += removed
			result.Divergences += added + removed
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if r.metrics != nil && result.Divergences > 0 {
		r.metrics.ReconcileDivergences.Add(float64(result.Divergences))
	}
	r.countRun("ok")

	if result.Divergences > 0 {
		r.log.WithFields(map[string]interface{}{
			"users":   result.Users,
			"added":   result.Added,
			"removed": result.Removed,
		}).Warn("repaired diverged role names")
	}
	return result, nil
}

// reconcileUser brings one user's mirrored names in line with the local
// assignments. Adds and removes are idempotent on the provider side.
func (r *Reconciler) reconcileUser(ctx context.Context, userID string) (added, removed int, err error) {
	assignments, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("loading assignments: %w", err)
	}
	expected := make(map[string]bool)
	for _, a := range assignments {
		expected[string(a.Role)] = true
	}

	actualNames, err := r.idp.ListRoleNames(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("listing mirrored names: %w", err)
	}
	actual := make(map[string]bool, len(actualNames))
	for _, name := range actualNames {
		actual[name] = true
	}

	for _, name := range sortedKeys(expected) {
		if !actual[name] {
			if err := r.idp.AddRoleName(ctx, userID, name); err != nil {
				return added, removed, fmt.Errorf("adding %s: %w", name, err)
			}
			added++
		}
	}
	for _, name := range sortedKeys(actual) {
		if !expected[name] {
			if err := r.idp.RemoveRoleName(ctx, userID, name); err != nil {
				return added, removed, fmt.Errorf("removing %s: %w", name, err)
			}
			removed++
		}
	}
	return added, removed, nil
}

// Start schedules periodic runs with the given cron expression.
func (r *Reconciler) Start(schedule string) error {
	r.cron = cron.New()
	id, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := r.Run(ctx); err != nil {
			r.log.WithError(err).Error("reconcile run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	r.runID = id
	r.cron.Start()
	r.log.WithField("schedule", schedule).Info("reconciler started")
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func (r *Reconciler) countRun(result string) {
	if r.metrics != nil {
		r.metrics.ReconcileRunsTotal.WithLabelValues(result).Inc()
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
