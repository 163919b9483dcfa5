package scheduling

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akademik-fk/curriculum-api/internal/models"
)

// EntrySource supplies the universe of existing entries the detector
// compares against. Implementations adapt stored records of every kind
// and include only active lecturers on each entry's roster; a lecturer
// who confirmed Unavailable no longer blocks on the lecturer dimension.
//
// An empty termID means the candidate's term could not be resolved; the
// source must then return entries across all terms (fail open).
type EntrySource interface {
	EntriesInTerm(ctx context.Context, termID string) ([]models.Entry, error)
}

// Detector finds the first existing entry that overlaps a candidate in
// time and intersects it on any resource dimension.
type Detector struct {
	source EntrySource
	logger *zap.Logger
}

// NewDetector builds a Detector.
func NewDetector(source EntrySource, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{source: source, logger: logger}
}

// DetectOptions tunes a single detection run.
type DetectOptions struct {
	// ExcludeID skips the candidate's own stored record on updates.
	ExcludeID string
	// Extra holds not-yet-persisted entries (earlier rows of the same
	// import batch) that a store-backed source cannot see. Their order
	// is preserved so intra-batch conflicts can reference a row number.
	Extra []models.Entry
}

// Detect returns the first conflicting entry for the candidate, or nil.
// Persisted entries are checked first, grouped by kind: the candidate's
// own kind first, remaining kinds in declaration order. Pending batch
// rows come after, in batch order, so a candidate clashing with both
// reports the stored entry. First hit wins.
func (d *Detector) Detect(ctx context.Context, candidate models.Entry, opts DetectOptions) (*models.Conflict, error) {
	existing, err := d.source.EntriesInTerm(ctx, candidate.TermID)
	if err != nil {
		return nil, fmt.Errorf("load entries for term %q: %w", candidate.TermID, err)
	}

	byKind := make(map[models.Kind][]models.Entry, len(existing))
	for _, e := range existing {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	for _, kind := range scanOrder(candidate.Kind) {
		for _, entry := range byKind[kind] {
			if entry.Kind == candidate.Kind && entry.ID == opts.ExcludeID {
				continue
			}
			if c := Compare(candidate, entry); c != nil {
				d.logger.Debug("schedule conflict detected",
					zap.String("candidate_kind", string(candidate.Kind)),
					zap.String("entry_id", c.EntryID),
					zap.String("dimension", string(c.Dimension)),
				)
				return c, nil
			}
		}
	}

	for i, extra := range opts.Extra {
		if c := Compare(candidate, extra); c != nil {
			c.BatchRow = i + 1
			return c, nil
		}
	}
	return nil, nil
}

// Compare applies the overlap predicate and resource intersection to one
// pair of entries. Exposed for the batch validator's pairwise checks.
func Compare(candidate, other models.Entry) *models.Conflict {
	if !candidate.Window.Overlaps(other.Window) {
		return nil
	}

	if dim, name := intersect(candidate, other); dim != "" {
		return &models.Conflict{
			EntryID:      other.ID,
			Kind:         other.Kind,
			Window:       other.Window,
			Dimension:    dim,
			ResourceName: name,
		}
	}
	return nil
}

func intersect(a, b models.Entry) (models.Dimension, string) {
	// The roster may be populated for capacity purposes alone
	// (Praktikum); a shared lecturer only conflicts when both kinds
	// compare on the lecturer dimension.
	if DimensionsFor(a.Kind).Lecturer && DimensionsFor(b.Kind).Lecturer {
		if id, ok := sharedLecturer(a.Resources, b.Resources); ok {
			name := b.Resources.LecturerNames[id]
			if name == "" {
				name = a.Resources.LecturerNames[id]
			}
			if name == "" {
				name = id
			}
			return models.DimensionLecturer, name
		}
	}

	if a.UsesRoom && b.UsesRoom && a.Resources.RoomID == b.Resources.RoomID {
		name := b.Resources.RoomName
		if name == "" {
			name = a.Resources.RoomID
		}
		return models.DimensionRoom, name
	}

	if a.Resources.SmallGroupID != "" && a.Resources.SmallGroupID == b.Resources.SmallGroupID {
		return models.DimensionSmallGroup, groupName(b, a)
	}

	if a.Resources.LargeGroupID != "" && a.Resources.LargeGroupID == b.Resources.LargeGroupID {
		return models.DimensionLargeGroup, groupName(b, a)
	}

	// Nested membership: a small group's students are a subset of their
	// parent cohort, so a small-group session collides with any session
	// booked for the whole cohort.
	if a.Resources.SmallGroupParentID != "" && a.Resources.SmallGroupParentID == b.Resources.LargeGroupID {
		return models.DimensionLargeGroup, groupName(b, a)
	}
	if b.Resources.SmallGroupParentID != "" && b.Resources.SmallGroupParentID == a.Resources.LargeGroupID {
		return models.DimensionLargeGroup, groupName(b, a)
	}

	return "", ""
}

func sharedLecturer(a, b models.ResourceSet) (string, bool) {
	for _, id := range a.LecturerIDs {
		if b.HasLecturer(id) {
			return id, true
		}
	}
	return "", false
}

func groupName(preferred, fallback models.Entry) string {
	if preferred.Resources.GroupName != "" {
		return preferred.Resources.GroupName
	}
	return fallback.Resources.GroupName
}

// scanOrder yields every kind with the candidate's own kind promoted to
// the front; the remaining kinds keep declaration order. Deterministic
// first-hit, not most-severe.
func scanOrder(own models.Kind) []models.Kind {
	order := make([]models.Kind, 0, len(models.Kinds()))
	order = append(order, own)
	for _, k := range models.Kinds() {
		if k != own {
			order = append(order, k)
		}
	}
	return order
}
