package ml

import (
	"fmt"
	"io"
	"strings"
)

// LabelMetrics holds per-plan holdout scores.
type LabelMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport summarizes holdout performance.
type ClassificationReport struct {
	Accuracy    float64        `json:"accuracy"`
	Total       int            `json:"total"`
	Labels      []LabelMetrics `json:"labels"`
	MacroAvg    LabelMetrics   `json:"macro_avg"`
	WeightedAvg LabelMetrics   `json:"weighted_avg"`
}

// NewClassificationReport scores yPred against yTrue. labels[i] names class i.
// A label that is never predicted gets precision 0, one that never occurs gets
// recall 0; neither is an error.
func NewClassificationReport(yTrue, yPred []int, labels []string) (*ClassificationReport, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("classification report: %d true labels but %d predictions", len(yTrue), len(yPred))
	}
	k := len(labels)
	tp := make([]int, k)
	predicted := make([]int, k)
	support := make([]int, k)
	correct := 0
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			return nil, fmt.Errorf("classification report: row %d has class outside [0,%d)", i, k)
		}
		support[t]++
		predicted[p]++
		if t == p {
			tp[t]++
			correct++
		}
	}

	r := &ClassificationReport{
		Total:  len(yTrue),
		Labels: make([]LabelMetrics, k),
	}
	if r.Total > 0 {
		r.Accuracy = float64(correct) / float64(r.Total)
	}

	r.MacroAvg.Label = "macro avg"
	r.WeightedAvg.Label = "weighted avg"
	for c := range labels {
		m := LabelMetrics{Label: labels[c], Support: support[c]}
		if predicted[c] > 0 {
			m.Precision = float64(tp[c]) / float64(predicted[c])
		}
		if support[c] > 0 {
			m.Recall = float64(tp[c]) / float64(support[c])
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Labels[c] = m

		r.MacroAvg.Precision += m.Precision
		r.MacroAvg.Recall += m.Recall
		r.MacroAvg.F1 += m.F1
		w := float64(m.Support)
		r.WeightedAvg.Precision += w * m.Precision
		r.WeightedAvg.Recall += w * m.Recall
		r.WeightedAvg.F1 += w * m.F1
	}
	if k > 0 {
		r.MacroAvg.Precision /= float64(k)
		r.MacroAvg.Recall /= float64(k)
		r.MacroAvg.F1 /= float64(k)
	}
	if r.Total > 0 {
		n := float64(r.Total)
		r.WeightedAvg.Precision /= n
		r.WeightedAvg.Recall /= n
		r.WeightedAvg.F1 /= n
	}
	r.MacroAvg.Support = r.Total
	r.WeightedAvg.Support = r.Total
	return r, nil
}

// Write prints the report as an aligned text table.
func (r *ClassificationReport) Write(w io.Writer) {
	width := len("weighted avg")
	for _, m := range r.Labels {
		if len(m.Label) > width {
			width = len(m.Label)
		}
	}
	row := func(m LabelMetrics) {
		fmt.Fprintf(w, "%-*s  %9.2f  %9.2f  %9.2f  %7d\n", width, m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}

	fmt.Fprintf(w, "%-*s  %9s  %9s  %9s  %7s\n", width, "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Labels {
		row(m)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-*s  %9s  %9s  %9.2f  %7d\n", width, "accuracy", "", "", r.Accuracy, r.Total)
	row(r.MacroAvg)
	row(r.WeightedAvg)
}

func (r *ClassificationReport) String() string {
	var sb strings.Builder
	r.Write(&sb)
	return sb.String()
}
