// Package mlplayground trains and compares tabular models from a CSV file.
//
// A run loads a delimited file into a frame, picks a target column, splits
// the rows into train and test partitions, optionally creates and drops
// features, preprocesses numeric and categorical columns separately and
// fits one estimator from a fixed registry. The fitted pipeline is scored
// on both partitions and can be stored in a local SQLite registry for
// later prediction.
//
// # Quick Start
//
//	mlplay inspect houses.csv --target price
//	mlplay run -f houses.csv -t price -e random_forest_regressor \
//	    --numeric impute:median,standard_scaler --categorical one_hot --save
//	mlplay predict <artifact-id> new_houses.csv
//
// The same flow is available from Go:
//
//	l, err := dataset.LoadFile("houses.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ds, err := dataset.New(l.Frame, "price")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := run.DefaultConfig()
//	cfg.Target = "price"
//	cfg.Estimator = estimator.LinearRegressionID
//	cfg.NumericSteps = []preprocessing.StepConfig{{Type: preprocessing.StepStandardScaler}}
//	cfg.CategoricalSteps = []preprocessing.StepConfig{{Type: preprocessing.StepOneHot}}
//
//	res, err := run.RunModel(ctx, ds, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ev, err := report.Evaluate(res)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = report.WriteSummary(os.Stdout, res, ev)
//
// # Packages
//
//   - core/frame: Column-typed tables, CSV reading and writing
//   - core/model: Step and estimator interfaces, fitted state
//   - dataset: Upload loading, target and identifier selection
//   - model_selection: Train/test split with optional stratification
//   - features: Declarative feature creation and column dropping
//   - preprocessing: Imputers, scalers and encoders
//   - estimator: The estimator registry
//   - pipeline: Pipelines, column transformers and serialization
//   - metrics: Regression and classification scores
//   - run: Run configuration and orchestration
//   - report: Evaluation, summaries and plots
//   - internal/registry: SQLite artifact store
//   - internal/server: HTTP API
//   - cmd/mlplay: Command line interface
package mlplayground
