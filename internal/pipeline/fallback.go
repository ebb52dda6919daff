package pipeline

import (
	"fmt"

	"github.com/airwaycast/airwaycast/internal/features"
	"github.com/airwaycast/airwaycast/internal/model"
	"github.com/airwaycast/airwaycast/internal/prediction"
	"github.com/airwaycast/airwaycast/internal/risk"
)

// Scorer produces raw classifier output for feature rows. *model.Bundle
// implements it.
type Scorer interface {
	Predict(rows []model.Row) ([]risk.Output, []string, error)
}

var _ Scorer = (*model.Bundle)(nil)

// NoHistoryUsers returns the users none of whose rows has a recorded check-in.
func NoHistoryUsers(rows []features.Row) map[string]bool {
	recorded := make(map[string]bool)
	for _, r := range rows {
		recorded[r.UserID] = recorded[r.UserID] || r.Recorded
	}
	out := make(map[string]bool)
	for u, ok := range recorded {
		if !ok {
			out[u] = true
		}
	}
	return out
}

// ApplyFallback replaces the predictions of no-history users with scores from
// the environment-only scorer. rows should span the lookback as well as the
// window so history before the window counts. A nil scorer leaves preds
// unchanged. The returned slice is a copy.
func ApplyFallback(rows []features.Row, preds []prediction.Record, scorer Scorer) ([]prediction.Record, error) {
	out := append([]prediction.Record(nil), preds...)
	if scorer == nil || len(out) == 0 {
		return out, nil
	}

	noHistory := NoHistoryUsers(rows)
	if len(noHistory) == 0 {
		return out, nil
	}

	rowByKey := make(map[prediction.Key]int, len(rows))
	for i := range rows {
		rowByKey[prediction.Key{UserID: rows[i].UserID, Date: rows[i].Date}] = i
	}

	var (
		targets []int
		input   []model.Row
	)
	for i, p := range out {
		if !noHistory[p.UserID] {
			continue
		}
		j, ok := rowByKey[prediction.KeyOf(p)]
		if !ok {
			continue
		}
		targets = append(targets, i)
		input = append(input, &rows[j])
	}
	if len(input) == 0 {
		return out, nil
	}

	outputs, _, err := scorer.Predict(input)
	if err != nil {
		return append([]prediction.Record(nil), preds...), fmt.Errorf("environment scorer: %w", err)
	}
	for k, i := range targets {
		out[i].Risk = risk.Normalize(outputs[k])
		out[i].Confidence = confidence(outputs[k])
		out[i].Scorer = prediction.ScorerEnvironment
	}
	return out, nil
}

func confidence(o risk.Output) *float64 {
	c := o.Confidence()
	return &c
}

func asModelRows(rows []features.Row) []model.Row {
	out := make([]model.Row, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}
