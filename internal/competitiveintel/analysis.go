package competitiveintel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned, wrapped, when a request is rejected before the run starts.
var ErrInvalidInput = errors.New("invalid analysis request")

type Request struct {
	Competitors []string `json:"competitors"`
	FocusArea   string   `json:"focus_area"`
}

// Normalize trims the request and checks the competitor bounds. Names that
// differ only in case or surrounding space count as the same competitor.
func (r Request) Normalize() (Request, error) {
	out := Request{FocusArea: strings.TrimSpace(r.FocusArea)}
	if len(r.Competitors) < MinCompetitors {
		return out, fmt.Errorf("%w: at least %d competitor is required", ErrInvalidInput, MinCompetitors)
	}
	if len(r.Competitors) > MaxCompetitors {
		return out, fmt.Errorf("%w: at most %d competitors are allowed, got %d", ErrInvalidInput, MaxCompetitors, len(r.Competitors))
	}
	seen := make(map[string]int, len(r.Competitors))
	for i, c := range r.Competitors {
		c = strings.TrimSpace(c)
		if c == "" {
			return out, fmt.Errorf("%w: competitor %d is blank", ErrInvalidInput, i+1)
		}
		key := strings.ToLower(c)
		if first, dup := seen[key]; dup {
			return out, fmt.Errorf("%w: competitor %d %q repeats competitor %d", ErrInvalidInput, i+1, c, first)
		}
		seen[key] = i + 1
		out.Competitors = append(out.Competitors, c)
	}
	return out, nil
}

// RunAnalysis validates req and runs the full pipeline. The returned error is
// non-nil only for rejected input; collaborator and stage failures are
// reported inside the FinalReport.
func (o *Orchestrator) RunAnalysis(ctx context.Context, req Request) (*FinalReport, error) {
	return o.runAnalysis(ctx, req, nil)
}

func (o *Orchestrator) RunAnalysisWithProgress(ctx context.Context, req Request, progress StageProgressFn) (*FinalReport, error) {
	return o.runAnalysis(ctx, req, progress)
}

func (o *Orchestrator) runAnalysis(ctx context.Context, req Request, progress StageProgressFn) (*FinalReport, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	o.log.WithField("competitors", strings.Join(req.Competitors, ",")).WithField("focus_area", req.FocusArea).Info("analysis_start")
	report := o.run(ctx, req.Competitors, req.FocusArea, progress)
	o.log.WithField("mode", report.Mode).WithField("errors", report.Metadata.ErrorsEncountered).Info("analysis_complete")
	return report, nil
}
