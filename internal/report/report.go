// Package report assembles the access-log reports from aggregate queries.
package report

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/coffersTech/nanolog/logreport/internal/engine"
)

// Kind is one report section. Sections always render in Kind order.
type Kind int

const (
	KindTopRequests Kind = iota
	KindTopUnsuccessful
	KindTopIPs
	KindTopIPsDetailed
	KindSuccessful
	KindUnsuccessful
)

var kindNames = [...]string{
	"top_requests", "top_unsuccessful", "top_ips", "top_ips_detailed", "successful", "unsuccessful",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// FullKinds returns every section in full-report order.
func FullKinds() []Kind {
	return []Kind{
		KindTopRequests, KindTopUnsuccessful, KindTopIPs,
		KindTopIPsDetailed, KindSuccessful, KindUnsuccessful,
	}
}

// ParseTop maps a --top choice to its section.
func ParseTop(name string) (Kind, error) {
	switch name {
	case "requests":
		return KindTopRequests, nil
	case "unsuccessful":
		return KindTopUnsuccessful, nil
	case "ips":
		return KindTopIPs, nil
	}
	return 0, errors.Errorf("unknown top report %q (want requests, unsuccessful or ips)", name)
}

// Source answers aggregate queries. *engine.QueryEngine and *engine.Table
// both implement it.
type Source interface {
	RowCount(ctx context.Context) (int64, error)
	TopN(ctx context.Context, q engine.TopNQuery) ([]engine.KeyCount, error)
	Percentage(ctx context.Context, pred engine.Predicate) (engine.Ratio, error)
	TopNDetailed(ctx context.Context, q engine.DetailQuery) ([]engine.DetailGroup, error)
}

// Section is one computed report section. Exactly one of Rows, Groups or
// Ratio is set, depending on Kind.
type Section struct {
	Kind   Kind
	Title  string
	Header [2]string
	Rows   []engine.KeyCount
	Groups []engine.DetailGroup
	Ratio  *engine.Ratio
	// InnerN is the per-group limit of a detailed section.
	InnerN int
}

// Report is the ordered list of computed sections.
type Report struct {
	Total    int64
	Sections []Section
}

// Builder computes report sections against a Source.
type Builder struct {
	Source  Source
	TopN    int
	DetailN int
}

// Build computes the requested sections. Duplicates are dropped and the
// sections are returned in Kind order. Nothing is returned on error, so a
// failure never yields a partial report.
func (b Builder) Build(ctx context.Context, kinds []Kind) (*Report, error) {
	if len(kinds) == 0 {
		return nil, errors.New("no report selected")
	}
	var want [len(kindNames)]bool
	for _, k := range kinds {
		if k < 0 || int(k) >= len(kindNames) {
			return nil, errors.Errorf("unknown report %s", k)
		}
		want[k] = true
	}

	total, err := b.Source.RowCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "counting rows")
	}
	rep := &Report{Total: total}

	for k, ok := range want {
		if !ok {
			continue
		}
		sec, err := b.section(ctx, Kind(k))
		if err != nil {
			return nil, errors.Wrapf(err, "computing %s", Kind(k))
		}
		rep.Sections = append(rep.Sections, sec)
	}
	return rep, nil
}

func (b Builder) section(ctx context.Context, k Kind) (Section, error) {
	sec := Section{Kind: k}
	var err error

	switch k {
	case KindTopRequests:
		sec.Title = fmt.Sprintf("Top %d requests:", b.TopN)
		sec.Header = [2]string{"Resource", "Number of requests"}
		sec.Rows, err = b.Source.TopN(ctx, engine.TopNQuery{Field: engine.FieldResource, N: b.TopN})
	case KindTopUnsuccessful:
		sec.Title = fmt.Sprintf("Top %d unsuccessful requests:", b.TopN)
		sec.Header = [2]string{"Resource", "Number of requests"}
		sec.Rows, err = b.Source.TopN(ctx, engine.TopNQuery{
			Field: engine.FieldResource,
			N:     b.TopN,
			Where: engine.Unsuccessful,
		})
	case KindTopIPs:
		sec.Title = fmt.Sprintf("Top %d ips:", b.TopN)
		sec.Header = [2]string{"IP", "Number of requests"}
		sec.Rows, err = b.Source.TopN(ctx, engine.TopNQuery{Field: engine.FieldClientIP, N: b.TopN})
	case KindTopIPsDetailed:
		sec.Title = fmt.Sprintf("Top %d ip requests and detailed resources:", b.TopN)
		sec.Header = [2]string{"Resource", "Number of requests"}
		sec.InnerN = b.DetailN
		sec.Groups, err = b.Source.TopNDetailed(ctx, engine.DetailQuery{
			Outer:  engine.FieldClientIP,
			Inner:  engine.FieldResource,
			OuterN: b.TopN,
			InnerN: b.DetailN,
		})
	case KindSuccessful, KindUnsuccessful:
		pred, label := engine.Predicate(engine.Successful), "successful"
		if k == KindUnsuccessful {
			pred, label = engine.Unsuccessful, "unsuccessful"
		}
		sec.Title = fmt.Sprintf("Percentage of %s requests:", label)
		var r engine.Ratio
		r, err = b.Source.Percentage(ctx, pred)
		sec.Ratio = &r
	}
	return sec, err
}
