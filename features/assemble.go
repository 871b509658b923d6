package features

import (
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/preprocessing"
)

// Step names of the feature-engineering stage.
const (
	CreateFeaturesStep = "create_features"
	ColumnDropperStep  = "column_dropper"
)

// Assemble returns the feature-engineering steps, or nil when neither a
// creator nor drop columns are given. Feature creation always precedes the
// dropper, so created columns may be dropped but not the reverse.
func Assemble(creator model.Transformer, dropColumns []string) []model.Step {
	var steps []model.Step
	if creator != nil {
		steps = append(steps, model.NewTransformerStep(CreateFeaturesStep, creator))
	}
	if len(dropColumns) > 0 {
		steps = append(steps, model.NewTransformerStep(ColumnDropperStep, preprocessing.NewColumnDropper(dropColumns...)))
	}
	return steps
}
