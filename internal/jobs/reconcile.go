package jobs

import (
	"context"
	"time"

	"github.com/emrgen/knowledge/internal/service"
	"github.com/sirupsen/logrus"
)

type organizationLister interface {
	ListOrganizations(ctx context.Context) ([]*service.Organization, error)
}

type linkReconciler interface {
	ReconcileLinks(ctx context.Context, organizationID string) (int, error)
}

var _ CronJob = (*LinkReconciler)(nil)

// LinkReconciler recomputes link sets from entry bodies. Concurrent renames and deletes can leave
// a link set that no longer matches its body; the reconciler repairs those.
type LinkReconciler struct {
	orgs     organizationLister
	entries  linkReconciler
	schedule string
	timeout  time.Duration
}

func NewLinkReconciler(schedule string, orgs organizationLister, entries linkReconciler) *LinkReconciler {
	return &LinkReconciler{
		orgs:     orgs,
		entries:  entries,
		schedule: schedule,
		timeout:  5 * time.Minute,
	}
}

func (r *LinkReconciler) Name() string {
	return "link_reconciler"
}

func (r *LinkReconciler) Schedule() string {
	return r.schedule
}

func (r *LinkReconciler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.Reconcile(ctx); err != nil {
		logrus.Errorf("link reconciliation failed: %v", err)
	}
}

// Reconcile repairs every organization and returns the number of repaired entries.
func (r *LinkReconciler) Reconcile(ctx context.Context) (int, error) {
	orgs, err := r.orgs.ListOrganizations(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, org := range orgs {
		repaired, err := r.entries.ReconcileLinks(ctx, org.ID)
		if err != nil {
			logrus.Errorf("reconcile links of organization %s: %v", org.ID, err)
			continue
		}
		if repaired > 0 {
			logrus.Infof("repaired the link sets of %d entries in organization %s", repaired, org.ID)
		}
		total += repaired
	}

	return total, nil
}
