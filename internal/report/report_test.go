package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	"github.com/coffersTech/nanolog/logreport/internal/engine"
	"github.com/coffersTech/nanolog/logreport/internal/model"
	"github.com/coffersTech/nanolog/logreport/internal/pkg/clf"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

var lines = []string{
	`10.0.32.179 - - [10/Oct/2000:13:55:36 -0700] "GET /system/get.php?token=abc HTTP/1.1" 404 209`,
	`10.0.146.5 - frank [10/Oct/2000:13:55:37 -0700] "POST /kernel/list.php HTTP/1.0" 204 -`,
	`10.0.136.237 - - [10/Oct/2000:13:55:38 -0700] "DELETE /system/request.php HTTP/2.0" 403 0`,
}

func newEngine(t *testing.T, chunk int) *engine.QueryEngine {
	t.Helper()
	var recs []model.Record
	for _, l := range lines {
		rec, err := clf.Parse(l)
		require.NoError(t, err)
		recs = append(recs, rec)
	}

	var batches []*engine.ColumnBatch
	for start := 0; start < len(recs); start += chunk {
		end := min(start+chunk, len(recs))
		b, err := engine.BuildBatch(recs[start:end])
		require.NoError(t, err)
		batches = append(batches, b)
	}

	reader := func(_ string, visit func(int, *engine.ColumnBatch) error) error {
		for i, b := range batches {
			if err := visit(i, b); err != nil {
				return err
			}
		}
		return nil
	}
	return engine.NewQueryEngine("mem", reader, 2)
}

func TestBuildFullOrder(t *testing.T) {
	b := Builder{Source: newEngine(t, 2000), TopN: 10, DetailN: 5}
	rep, err := b.Build(context.Background(), FullKinds())
	require.NoError(t, err)

	var kinds []Kind
	for _, s := range rep.Sections {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, FullKinds(), kinds)
	assert.Equal(t, int64(3), rep.Total)

	ips := rep.Sections[2]
	require.Len(t, ips.Rows, 3)
	assert.Equal(t, []string{"10.0.32.179", "10.0.146.5", "10.0.136.237"},
		[]string{ips.Rows[0].Key, ips.Rows[1].Key, ips.Rows[2].Key})

	assert.Equal(t, "33.33%", rep.Sections[4].Ratio.Percent())
	assert.Equal(t, "66.67%", rep.Sections[5].Ratio.Percent())

	unsuccessful := rep.Sections[1]
	require.Len(t, unsuccessful.Rows, 2)
	assert.Equal(t, "/system/get.php", unsuccessful.Rows[0].Key)
	assert.Equal(t, "/system/request.php", unsuccessful.Rows[1].Key)
}

func TestBuildSelectionIsOrderedAndDeduplicated(t *testing.T) {
	b := Builder{Source: newEngine(t, 2), TopN: 10, DetailN: 5}
	rep, err := b.Build(context.Background(), []Kind{KindUnsuccessful, KindTopIPs, KindUnsuccessful})
	require.NoError(t, err)
	require.Len(t, rep.Sections, 2)
	assert.Equal(t, KindTopIPs, rep.Sections[0].Kind)
	assert.Equal(t, KindUnsuccessful, rep.Sections[1].Kind)
}

func TestBuildNothingSelected(t *testing.T) {
	b := Builder{Source: newEngine(t, 2), TopN: 10, DetailN: 5}
	_, err := b.Build(context.Background(), nil)
	assert.Error(t, err)
}

func TestParseTop(t *testing.T) {
	for name, want := range map[string]Kind{
		"requests":     KindTopRequests,
		"unsuccessful": KindTopUnsuccessful,
		"ips":          KindTopIPs,
	} {
		got, err := ParseTop(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTop("resources")
	assert.Error(t, err)
}

func TestRenderText(t *testing.T) {
	b := Builder{Source: newEngine(t, 2), TopN: 10, DetailN: 5}
	rep, err := b.Build(context.Background(), FullKinds())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rep, "text"))
	out := buf.String()

	assert.Contains(t, out, "Top 10 requests:")
	assert.Contains(t, out, "Top 10 unsuccessful requests:")
	assert.Contains(t, out, "Top 5 requests for: 10.0.146.5 (1)")
	assert.Contains(t, out, "Percentage of successful requests:\n33.33%")
	assert.Contains(t, out, "Percentage of unsuccessful requests:\n66.67%")
	assert.Contains(t, out, "/kernel/list.php")
	assert.NotContains(t, out, "token=abc")
}

func TestRenderJSON(t *testing.T) {
	b := Builder{Source: newEngine(t, 1), TopN: 2, DetailN: 1}
	rep, err := b.Build(context.Background(), []Kind{KindTopIPs, KindTopIPsDetailed, KindSuccessful})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rep, "json"))

	v, err := fastjson.ParseBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, v.GetInt("total"))

	sections := v.GetArray("sections")
	require.Len(t, sections, 3)
	assert.Equal(t, "top_ips", string(sections[0].GetStringBytes("kind")))
	assert.Len(t, sections[0].GetArray("rows"), 2)
	assert.Equal(t, "10.0.32.179", string(sections[0].GetStringBytes("rows", "0", "key")))

	groups := sections[1].GetArray("groups")
	require.Len(t, groups, 2)
	assert.Equal(t, "/system/get.php", string(groups[0].GetStringBytes("top", "0", "key")))

	assert.Equal(t, 1, sections[2].GetInt("matched"))
	assert.Equal(t, "33.33%", string(sections[2].GetStringBytes("percent")))
}

func TestRenderUnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, &Report{}, "xml"))
}

// The per-batch engine and the materialized table render identically.
func TestEngineAndTableAgree(t *testing.T) {
	qe := newEngine(t, 1)
	table, err := qe.LoadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	render := func(src Source) string {
		rep, err := Builder{Source: src, TopN: 10, DetailN: 5}.Build(context.Background(), FullKinds())
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, RenderText(&buf, rep))
		return buf.String()
	}
	assert.Equal(t, render(qe), render(table))
}
