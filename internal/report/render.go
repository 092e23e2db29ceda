package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"

	"github.com/coffersTech/nanolog/logreport/internal/engine"
)

// Render writes rep in the given format ("text" or "json").
func Render(w io.Writer, rep *Report, format string) error {
	switch format {
	case "", "text":
		return RenderText(w, rep)
	case "json":
		return RenderJSON(w, rep)
	}
	return errors.Errorf("unknown output format %q", format)
}

// RenderText writes every section as a titled two-column table.
func RenderText(w io.Writer, rep *Report) error {
	ew := &errWriter{w: w}
	for _, sec := range rep.Sections {
		fmt.Fprintf(ew, "\n%s\n", sec.Title)
		switch {
		case sec.Ratio != nil:
			fmt.Fprintf(ew, "%s\n", sec.Ratio.Percent())
		case sec.Kind == KindTopIPsDetailed:
			for _, g := range sec.Groups {
				fmt.Fprintf(ew, "\nTop %d requests for: %s (%d)\n", sec.InnerN, g.Key, g.Count)
				writeTable(ew, sec.Header, g.Top)
			}
		default:
			writeTable(ew, sec.Header, sec.Rows)
		}
	}
	return ew.err
}

func writeTable(w io.Writer, header [2]string, rows []engine.KeyCount) {
	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader(header[0], header[1])
	for _, kc := range rows {
		t.AddLine(kc.Key, kc.Count)
	}
	t.Print()
}

// errWriter keeps the first write error so rendering code can ignore it.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// RenderJSON writes the report as a single JSON document.
func RenderJSON(w io.Writer, rep *Report) error {
	var a fastjson.Arena

	sections := a.NewArray()
	for i, sec := range rep.Sections {
		o := a.NewObject()
		o.Set("kind", a.NewString(sec.Kind.String()))
		o.Set("title", a.NewString(sec.Title))
		switch {
		case sec.Ratio != nil:
			o.Set("matched", a.NewNumberInt(int(sec.Ratio.Matched)))
			o.Set("total", a.NewNumberInt(int(sec.Ratio.Total)))
			o.Set("value", a.NewNumberFloat64(sec.Ratio.Value()))
			o.Set("percent", a.NewString(sec.Ratio.Percent()))
		case sec.Kind == KindTopIPsDetailed:
			groups := a.NewArray()
			for j, g := range sec.Groups {
				grp := a.NewObject()
				grp.Set("key", a.NewString(g.Key))
				grp.Set("count", a.NewNumberInt(int(g.Count)))
				grp.Set("top", keyCounts(&a, g.Top))
				groups.SetArrayItem(j, grp)
			}
			o.Set("groups", groups)
		default:
			o.Set("rows", keyCounts(&a, sec.Rows))
		}
		sections.SetArrayItem(i, o)
	}

	doc := a.NewObject()
	doc.Set("total", a.NewNumberInt(int(rep.Total)))
	doc.Set("sections", sections)

	_, err := w.Write(append(doc.MarshalTo(nil), '\n'))
	return errors.Wrap(err, "writing report")
}

func keyCounts(a *fastjson.Arena, rows []engine.KeyCount) *fastjson.Value {
	arr := a.NewArray()
	for i, kc := range rows {
		o := a.NewObject()
		o.Set("key", a.NewString(kc.Key))
		o.Set("count", a.NewNumberInt(int(kc.Count)))
		arr.SetArrayItem(i, o)
	}
	return arr
}
