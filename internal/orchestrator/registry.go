package orchestrator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/builderpro/buildcheck/internal/detector"
	"github.com/builderpro/buildcheck/pkg/models"
)

// bugRecord pairs a bug with the finding it was normalized from, so fixers
// receive the machine-readable subject the detector produced.
type bugRecord struct {
	bug         *models.Bug
	finding     detector.Finding
	firstSeen   int
	fixed       bool
	fixAttempts int
	lastFixErr  string
}

// bugRegistry dedupes bugs across iterations by structural identity and
// tracks which have been cleared by reverification. Bug IDs stay stable
// for the life of a run.
type bugRegistry struct {
	order []models.BugKey
	byKey map[models.BugKey]*bugRecord
}

func newBugRegistry() *bugRegistry {
	return &bugRegistry{byKey: make(map[models.BugKey]*bugRecord)}
}

// observe normalizes a batch of findings, registering new bugs and reusing
// records for ones already seen. It returns the records present in this
// batch, in first-seen order, and the subset that are new this iteration.
func (r *bugRegistry) observe(findings []detector.Finding, iteration int) (present, fresh []*bugRecord) {
	seen := make(map[models.BugKey]struct{}, len(findings))
	for _, f := range findings {
		bug := toBug(f)
		key := bug.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		rec, ok := r.byKey[key]
		if !ok {
			rec = &bugRecord{bug: bug, finding: f, firstSeen: iteration}
			r.byKey[key] = rec
			r.order = append(r.order, key)
			fresh = append(fresh, rec)
		}
		// A bug seen again was evidently not fixed after all.
		rec.fixed = false
		present = append(present, rec)
	}
	return present, fresh
}

// reverify marks as fixed every known bug in the given phases whose key is
// absent from the re-scan findings.
func (r *bugRegistry) reverify(phases []models.Phase, findings []detector.Finding) {
	rescanned := make(map[models.Phase]bool, len(phases))
	for _, p := range phases {
		rescanned[p] = true
	}
	still := make(map[models.BugKey]struct{}, len(findings))
	for _, f := range findings {
		still[toBug(f).Key()] = struct{}{}
	}
	for _, key := range r.order {
		rec := r.byKey[key]
		if !rescanned[rec.bug.Phase] || rec.fixed {
			continue
		}
		if _, remains := still[key]; !remains {
			rec.fixed = true
		}
	}
}

// markFixAttempt records one fix attempt against a bug.
func (r *bugRegistry) markFixAttempt(key models.BugKey, err error) {
	rec, ok := r.byKey[key]
	if !ok {
		return
	}
	rec.fixAttempts++
	if err != nil {
		rec.lastFixErr = err.Error()
	}
}

// records returns every record in first-seen order.
func (r *bugRegistry) records() []*bugRecord {
	out := make([]*bugRecord, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key])
	}
	return out
}

// total is the distinct bug count across the run.
func (r *bugRegistry) total() int { return len(r.order) }

// fixedCount counts bugs cleared by reverification.
func (r *bugRegistry) fixedCount() int {
	n := 0
	for _, key := range r.order {
		if r.byKey[key].fixed {
			n++
		}
	}
	return n
}

// hasUnfixedCritical reports whether any CRITICAL bug remains unfixed.
func (r *bugRegistry) hasUnfixedCritical() bool {
	for _, key := range r.order {
		rec := r.byKey[key]
		if rec.bug.Severity == models.SeverityCritical && !rec.fixed {
			return true
		}
	}
	return false
}

// toBug normalizes a detector finding into a Bug with a fresh short ID.
// Identity is structural, so two calls on equal findings yield bugs with
// the same Key even though their IDs differ.
func toBug(f detector.Finding) *models.Bug {
	return &models.Bug{
		ID:         shortID(),
		Phase:      f.Phase,
		Severity:   f.Severity,
		Type:       f.Type,
		Message:    f.Message,
		File:       f.File,
		Line:       f.Line,
		Suggestion: f.Suggestion,
		Fixable:    f.Fixable,
	}
}

// shortID returns the first segment of a UUID, enough to be unique within
// a run and short enough for report lines.
func shortID() string {
	id := uuid.New().String()
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
