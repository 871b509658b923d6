package pipeline

import (
	"fmt"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// Remainder policies for columns not claimed by any route.
const (
	RemainderPassthrough = "passthrough"
	RemainderDrop        = "drop"
)

// ValidateRemainder rejects unknown remainder policies.
func ValidateRemainder(policy string) error {
	if policy != RemainderPassthrough && policy != RemainderDrop {
		return errors.NewValidationError("remainder", "must be passthrough or drop", policy)
	}
	return nil
}

// Route sends a fixed list of columns through one transformer pipeline.
type Route struct {
	Name        string
	Transformer *Pipeline
	Columns     []string
}

// ColumnTransformer applies each route to its own columns and concatenates
// the outputs in route order. Unclaimed columns are appended after the
// routed outputs (passthrough) or discarded (drop).
type ColumnTransformer struct {
	State     *model.StateManager
	Routes    []Route
	Remainder string

	// RemainderColumns is learned at fit.
	RemainderColumns []string
	// OutputColumns is the column order produced by Transform.
	OutputColumns []string
}

// NewColumnTransformer validates the routes. Route names must be unique and
// a column may belong to at most one route.
func NewColumnTransformer(routes []Route, remainder string) (*ColumnTransformer, error) {
	if remainder == "" {
		remainder = RemainderPassthrough
	}
	if err := ValidateRemainder(remainder); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, errors.NewValidationError("routes", "column transformer needs at least one route", 0)
	}
	names := make(map[string]struct{}, len(routes))
	owner := make(map[string]string)
	for _, r := range routes {
		if r.Transformer == nil {
			return nil, errors.NewValidationError(r.Name, "route has no transformer", nil)
		}
		if _, dup := names[r.Name]; dup {
			return nil, errors.NewValidationError("routes", "duplicate route name", r.Name)
		}
		names[r.Name] = struct{}{}
		for _, c := range r.Columns {
			if prev, taken := owner[c]; taken {
				return nil, errors.NewValidationError(r.Name,
					fmt.Sprintf("column %q is already routed to %s", c, prev), c)
			}
			owner[c] = r.Name
		}
	}
	return &ColumnTransformer{
		State:     model.NewStateManager(),
		Routes:    append([]Route(nil), routes...),
		Remainder: remainder,
	}, nil
}

// Fit fits every route on its columns and records the remainder.
func (ct *ColumnTransformer) Fit(X *frame.Frame, y *frame.Series) error {
	_, err := ct.FitTransform(X, y)
	return err
}

// FitTransform fits every route and returns the concatenated output.
func (ct *ColumnTransformer) FitTransform(X *frame.Frame, y *frame.Series) (*frame.Frame, error) {
	ct.State.Reset()
	if err := ValidateRemainder(ct.Remainder); err != nil {
		return nil, err
	}
	parts := make([]*frame.Frame, 0, len(ct.Routes)+1)
	claimed := make(map[string]struct{})
	for _, r := range ct.Routes {
		sub, err := selectRoute(X, r)
		if err != nil {
			return nil, err
		}
		out, err := r.Transformer.FitTransform(sub, y)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to fit route '%s'", r.Name))
		}
		parts = append(parts, out)
		for _, c := range r.Columns {
			claimed[c] = struct{}{}
		}
	}

	ct.RemainderColumns = nil
	for _, name := range X.Names() {
		if _, ok := claimed[name]; !ok {
			ct.RemainderColumns = append(ct.RemainderColumns, name)
		}
	}
	rest, err := ct.remainder(X)
	if err != nil {
		return nil, err
	}
	parts = append(parts, rest)

	out, err := frame.HStack(parts...)
	if err != nil {
		return nil, errors.Wrap(err, "ColumnTransformer: routed outputs collide")
	}
	ct.OutputColumns = out.Names()
	ct.State.SetFitted()
	ct.State.SetDimensions(X.NCols(), X.NRows())
	return out, nil
}

// Transform applies the fitted routes. Passthrough columns seen at fit must
// still be present.
func (ct *ColumnTransformer) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	parts := make([]*frame.Frame, 0, len(ct.Routes)+1)
	for _, r := range ct.Routes {
		sub, err := selectRoute(X, r)
		if err != nil {
			return nil, err
		}
		out, err := r.Transformer.Transform(sub)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform route '%s'", r.Name))
		}
		parts = append(parts, out)
	}
	rest, err := ct.remainder(X)
	if err != nil {
		return nil, err
	}
	parts = append(parts, rest)
	return frame.HStack(parts...)
}

// Route returns the named route.
func (ct *ColumnTransformer) Route(name string) (Route, bool) {
	for _, r := range ct.Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

func (ct *ColumnTransformer) String() string {
	names := make([]string, len(ct.Routes))
	for i, r := range ct.Routes {
		names[i] = r.Name
	}
	return fmt.Sprintf("ColumnTransformer(routes=%v, remainder=%s)", names, ct.Remainder)
}

func (ct *ColumnTransformer) remainder(X *frame.Frame) (*frame.Frame, error) {
	if ct.Remainder == RemainderDrop || len(ct.RemainderColumns) == 0 {
		return nil, nil
	}
	if missing := X.Missing(ct.RemainderColumns...); len(missing) > 0 {
		return nil, errors.NewMissingColumnError("ColumnTransformer.remainder", missing...)
	}
	return X.Select(ct.RemainderColumns...)
}

func selectRoute(X *frame.Frame, r Route) (*frame.Frame, error) {
	if missing := X.Missing(r.Columns...); len(missing) > 0 {
		return nil, errors.NewMissingColumnError("ColumnTransformer."+r.Name, missing...)
	}
	return X.Select(r.Columns...)
}
