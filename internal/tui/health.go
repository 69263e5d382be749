package tui

import (
	"github.com/Tiliavir/tsheet/internal/aggregate"
	"github.com/Tiliavir/tsheet/internal/model"
)

// RecordHealth grades a single user's records by the total of their day.
func RecordHealth(target float64) Classifier[model.Record] {
	return func(rows []model.Record) func(model.Record) Health {
		totals := aggregate.GroupTotals(rows)
		return func(r model.Record) Health {
			return grade(aggregate.Classify(r.Day(), totals, target))
		}
	}
}

// AdminHealth grades records of many users by the total of their owner's
// day. target returns the daily target for an owner id.
func AdminHealth(target func(ownerID string) float64) Classifier[model.Record] {
	return func(rows []model.Record) func(model.Record) Health {
		totals := aggregate.TotalsBy(rows, aggregate.OwnerDay)
		return func(r model.Record) Health {
			owner := ""
			if r.Owner != nil {
				owner = r.Owner.ID
			}
			return grade(aggregate.Classify(aggregate.OwnerDay(r), totals, target(owner)))
		}
	}
}

func grade(st aggregate.Status) Health {
	if st.Meets {
		return HealthMeets
	}
	return HealthUnder
}
