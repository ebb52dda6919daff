package pipeline_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/features"
	"github.com/airwaycast/airwaycast/internal/pipeline"
	"github.com/airwaycast/airwaycast/internal/prediction"
	"github.com/airwaycast/airwaycast/internal/user"
)

func enrichedRows(t *testing.T, checkIns []user.CheckIn) []features.Row {
	t.Helper()
	env := environment.SyntheticSource{}.Records(sf, day("2026-02-04"), day("2026-02-10"))
	for i := range env {
		env[i].LocationID = sf.ID
	}
	rows := features.Engine{Fallback: sf}.Enrich(env, []user.Profile{{ID: "a"}, {ID: "b"}}, checkIns)
	require.Len(t, rows, 14)
	return rows
}

func windowPreds(rows []features.Row) []prediction.Record {
	var out []prediction.Record
	for _, r := range features.Window(rows, day("2026-02-07"), day("2026-02-10")) {
		out = append(out, prediction.Record{UserID: r.UserID, Date: r.Date, Risk: 3, Scorer: prediction.ScorerPersonalized})
	}
	return out
}

func TestNoHistoryUsers(t *testing.T) {
	rows := enrichedRows(t, []user.CheckIn{{UserID: "a", Date: day("2026-02-05")}})
	assert.Equal(t, map[string]bool{"b": true}, pipeline.NoHistoryUsers(rows))
}

func TestApplyFallback(t *testing.T) {
	// A zero-valued report still counts as history.
	rows := enrichedRows(t, []user.CheckIn{{UserID: "a", Date: day("2026-02-05")}})
	preds := windowPreds(rows)

	out, err := pipeline.ApplyFallback(rows, preds, pm25FlareBundle())
	require.NoError(t, err)
	require.Len(t, out, len(preds))

	seen := map[float64]bool{}
	for _, r := range out {
		if r.UserID == "a" {
			assert.Equal(t, 3.0, r.Risk)
			assert.Equal(t, prediction.ScorerPersonalized, r.Scorer)
			continue
		}
		assert.Equal(t, prediction.ScorerEnvironment, r.Scorer)
		require.NotNil(t, r.Confidence)
		seen[r.Risk] = true
	}
	assert.Len(t, seen, 4)

	// Input is not modified.
	for _, p := range preds {
		assert.Equal(t, 3.0, p.Risk)
	}
}

func TestApplyFallback_NilScorer(t *testing.T) {
	rows := enrichedRows(t, nil)
	preds := windowPreds(rows)
	out, err := pipeline.ApplyFallback(rows, preds, nil)
	require.NoError(t, err)
	assert.Equal(t, preds, out)
}

func TestApplyFallback_ScorerError(t *testing.T) {
	rows := enrichedRows(t, nil)
	preds := windowPreds(rows)
	out, err := pipeline.ApplyFallback(rows, preds, &constantScorer{err: errors.New("boom")})
	assert.Error(t, err)
	assert.Equal(t, preds, out)
}
