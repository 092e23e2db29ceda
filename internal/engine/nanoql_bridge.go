package engine

import (
	"github.com/coffersTech/nanolog/logreport/internal/model"
	"github.com/coffersTech/nanolog/logreport/internal/pkg/nanoql"
)

// rowView adapts one row of a RowSource to nanoql.Row.
type rowView struct {
	src RowSource
	i   int
}

func (r rowView) Lookup(name string) string {
	f, err := ParseField(name)
	if err != nil {
		return model.NullToken
	}
	v, ok := Text(r.src, f, r.i)
	if !ok {
		return model.NullToken
	}
	return v
}

// CompileFilter parses a NanoQL expression into a Predicate.
// An empty query returns a nil Predicate, which selects every row.
func CompileFilter(query string) (Predicate, error) {
	node, err := nanoql.Parse(query)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return func(src RowSource, i int) bool {
		return nanoql.Match(node, rowView{src: src, i: i})
	}, nil
}
