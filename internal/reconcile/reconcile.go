// Package reconcile re-derives partner taxonomy across the whole partner
// table, healing drift left behind by out-of-order syncs or manual edits.
package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sophiesociety/hub-sync/internal/models"
	"github.com/sophiesociety/hub-sync/internal/taxonomy"
)

// PartnerStore is the persistence surface the reconciler needs.
type PartnerStore interface {
	ListPartners(ctx context.Context, limit int) ([]models.Partner, error)
	CountStaffForPartner(ctx context.Context, partnerID string) (int, error)
	UpdatePartnerType(ctx context.Context, partnerID, partnerType string) error
}

// Auditor records the reconciliation outcome.
type Auditor interface {
	RuleChange(ctx context.Context, action, subject string, detail map[string]interface{})
}

// Options controls one reconciliation pass.
type Options struct {
	DryRun bool
	// Limit caps partners examined (0 = all).
	Limit int
	// MismatchOnly reports disagreements without writing them back.
	MismatchOnly bool
	// DriftOnly restricts the pass to partners that already carry a
	// stored type, healing drift without classifying new partners.
	DriftOnly bool
}

// Mismatch is one partner whose stored type disagreed with the derived one.
type Mismatch struct {
	PartnerID   string `json:"partner_id"`
	PartnerName string `json:"partner_name"`
	Stored      string `json:"stored"`
	Derived     string `json:"derived"`
	Applied     bool   `json:"applied"`
}

// Summary is the result of one pass.
type Summary struct {
	Examined   int        `json:"examined"`
	Updated    int        `json:"updated"`
	Failed     int        `json:"failed"`
	Mismatches []Mismatch `json:"mismatches"`
	DurationMs int64      `json:"duration_ms"`
}

type Reconciler struct {
	partners PartnerStore
	audit    Auditor
	log      *logrus.Logger
	now      func() time.Time
}

// New creates a reconciler. The auditor may be nil.
func New(partners PartnerStore, audit Auditor, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logrus.New()
	}
	return &Reconciler{partners: partners, audit: audit, log: log, now: time.Now}
}

// Run re-derives partner_type for every partner and writes back the
// derivations that disagree with the stored value. A failure on one
// partner is counted and logged, never fatal to the pass; the pass is
// idempotent, so a second run over unchanged data writes nothing.
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Summary, error) {
	started := r.now()

	partners, err := r.partners.ListPartners(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, p := range partners {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Examined++
		r.reconcilePartner(ctx, p, opts, summary)
	}
	summary.DurationMs = r.now().Sub(started).Milliseconds()

	if r.audit != nil && !opts.DryRun && !opts.MismatchOnly {
		r.audit.RuleChange(ctx, "partner_type_reconciliation", "partners", map[string]interface{}{
			"examined": summary.Examined,
			"updated":  summary.Updated,
			"failed":   summary.Failed,
		})
	}

	r.log.WithFields(logrus.Fields{
		"examined": summary.Examined,
		"updated":  summary.Updated,
		"failed":   summary.Failed,
		"dry_run":  opts.DryRun,
	}).Info("partner type reconciliation finished")

	return summary, nil
}

func (r *Reconciler) reconcilePartner(ctx context.Context, p models.Partner, opts Options, summary *Summary) {
	log := r.log.WithFields(logrus.Fields{"partner_id": p.ID, "partner": p.Name})

	stored := ""
	if p.PartnerType != nil {
		stored = *p.PartnerType
	}
	if opts.DriftOnly && stored == "" {
		return
	}

	activeStaff, err := r.partners.CountStaffForPartner(ctx, p.ID)
	if err != nil {
		summary.Failed++
		log.WithError(err).Warn("failed to count staff, partner skipped")
		return
	}

	derived, err := taxonomy.DerivePartnerType(p.SourceData, activeStaff)
	if err != nil {
		summary.Failed++
		log.WithError(err).Warn("failed to derive partner type, partner skipped")
		return
	}

	if stored == derived {
		return
	}

	mismatch := Mismatch{
		PartnerID:   p.ID,
		PartnerName: p.Name,
		Stored:      stored,
		Derived:     derived,
	}

	if !opts.DryRun && !opts.MismatchOnly {
		if err := r.partners.UpdatePartnerType(ctx, p.ID, derived); err != nil {
			summary.Failed++
			summary.Mismatches = append(summary.Mismatches, mismatch)
			log.WithError(err).Warn("failed to update partner type")
			return
		}
		mismatch.Applied = true
		summary.Updated++
		log.WithFields(logrus.Fields{"from": stored, "to": derived}).Info("partner type updated")
	}

	summary.Mismatches = append(summary.Mismatches, mismatch)
}
