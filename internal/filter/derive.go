package filter

import (
	"github.com/mohammed-shakir/passmap/internal/filter/expr"
	"github.com/mohammed-shakir/passmap/internal/resolution"
	"github.com/mohammed-shakir/passmap/internal/timefmt"
)

type selections map[Dimension]string

func defaultSelections() selections {
	s := make(selections, len(dimensions))
	for _, d := range dimensions {
		s[d] = AllValues
	}
	return s
}

func (s selections) clone() selections {
	cp := make(selections, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// driverMatch reports whether sat satisfies every active driver selection.
func driverMatch(sat Satellite, sel selections) bool {
	for _, d := range dimensions {
		if !d.IsDriver() {
			continue
		}
		if !sat.matches(d, sel[d]) {
			return false
		}
	}
	return true
}

// deriveOptions lists every domain value per dimension. Target values nobody in
// the catalog can satisfy under the active drivers are disabled; drivers never are.
func deriveOptions(meta *Metadata, catalog []Satellite, sel selections) map[Dimension][]Option {
	reachable := map[Dimension]map[string]struct{}{
		Constellation: {},
		Operator:      {},
	}
	for _, sat := range catalog {
		if !driverMatch(sat, sel) {
			continue
		}
		reachable[Constellation][sat.Constellation] = struct{}{}
		reachable[Operator][sat.Operator] = struct{}{}
	}

	narrow := len(catalog) > 0
	out := make(map[Dimension][]Option, len(dimensions))
	for _, d := range dimensions {
		values := domain(meta, d)
		opts := make([]Option, 0, len(values))
		for _, v := range values {
			o := Option{Value: v}
			if narrow && d.IsTarget() {
				_, ok := reachable[d][v]
				o.Disabled = !ok
			}
			opts = append(opts, o)
		}
		out[d] = opts
	}
	return out
}

// buildExpression regenerates the whole map filter. Until both metadata and a
// time range are known it is the always-true ["all"].
func buildExpression(meta *Metadata, tr *TimeRange, sel selections) expr.AllOf {
	if meta == nil || tr == nil {
		return expr.All()
	}
	clauses := []expr.Expr{
		expr.Gte(AttrStartTime, timefmt.ISO(tr.Start)),
		expr.Lte(AttrEndTime, timefmt.ISO(tr.End)),
	}
	for _, d := range dimensions {
		v := sel[d]
		if v == AllValues {
			continue
		}
		if c := clauseFor(d, v); c != nil {
			clauses = append(clauses, c)
		}
	}
	return expr.All(clauses...)
}

func clauseFor(d Dimension, v string) expr.Expr {
	switch d {
	case Constellation:
		return expr.Eq(AttrConstellation, v)
	case Operator:
		return expr.Eq(AttrOperator, v)
	case SensorType:
		return expr.Eq(AttrSensorType, v)
	case DataAccess:
		return expr.Eq(AttrDataAccess, v)
	case Tasking:
		return expr.Eq(AttrTasking, v == "yes")
	case Daylight:
		return expr.Eq(AttrIsDaytime, v == "day")
	case Resolution:
		return resolutionClause(v)
	}
	return nil
}

// features carry raw meters, not the category label
func resolutionClause(v string) expr.Expr {
	cat, ok := resolution.Parse(v)
	if !ok {
		return nil
	}
	b, _ := cat.MeterBounds()
	var parts []expr.Expr
	if b.Min != nil {
		if b.MinInclusive {
			parts = append(parts, expr.Gte(AttrSpatialResM, *b.Min))
		} else {
			parts = append(parts, expr.Gt(AttrSpatialResM, *b.Min))
		}
	}
	if b.Max != nil {
		if b.MaxInclusive {
			parts = append(parts, expr.Lte(AttrSpatialResM, *b.Max))
		} else {
			parts = append(parts, expr.Lt(AttrSpatialResM, *b.Max))
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return expr.All(parts...)
}

func clampRange(tr TimeRange, meta *Metadata) TimeRange {
	if meta == nil {
		return tr
	}
	tr.Start = min(max(tr.Start, meta.MinTime), meta.MaxTime)
	tr.End = min(max(tr.End, meta.MinTime), meta.MaxTime)
	return tr
}
