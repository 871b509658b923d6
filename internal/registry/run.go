package registry

import (
	"context"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/run"
)

// SaveRun stores the artifact of res (feature creation fused in front of
// the model) with the given test metrics.
func (s *Store) SaveRun(ctx context.Context, name string, res *run.Result, metrics map[string]float64) (*Artifact, error) {
	art, err := res.Artifact()
	if err != nil {
		return nil, err
	}
	cfg, err := yaml.Marshal(res.Config)
	if err != nil {
		return nil, errors.Wrap(err, "encode run config")
	}
	return s.Save(ctx, Artifact{
		Name:      name,
		Estimator: estimatorID(res.Config.Estimator),
		Problem:   string(res.Problem),
		Target:    res.Config.Target,
		Metrics:   metrics,
		Config:    string(cfg),
	}, art)
}

// estimatorID resolves aliases so stored artifacts always carry the
// registry identifier.
func estimatorID(name string) string {
	if spec, err := estimator.Lookup(name); err == nil {
		return spec.ID
	}
	return name
}
