package knot

import (
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/layer"
)

// ProcessThematicData computes the knot's function values and stores them
// on its output layer. Links are applied in order, each feeding the next:
//   - a link within one layer reads the layer's own values, converting
//     between levels when in and out levels differ;
//   - an abstract join reads the precomputed inValues;
//   - a physical join aggregates the input values listed in inIds with the
//     link's op.
//
// A join whose dataset has not been attached is a DATA_INTEGRITY error.
// Operation knots combine the values of the knots they reference, which
// must have been processed first.
func (k *Knot) ProcessThematicData(lm *layer.Manager) error {
	if k.spec.KnotOp {
		return k.processOperation(lm)
	}

	var (
		values    [][]float64
		lastLayer *layer.Layer
		lastLevel grammar.Level
		prev      *grammar.LayerRef
	)
	for i, link := range k.spec.IntegrationScheme {
		out := lm.SearchByLayerID(link.Out.Name)
		if out == nil {
			return errors.New(errors.ErrCodeDataIntegrity, "knot %q link %d: layer %q not found", k.id, i, link.Out.Name)
		}
		if link.Out.Level == nil {
			// pure output, nothing to compute
			continue
		}
		outLevel := *link.Out.Level

		// values carried over from the previous link only apply when this
		// link reads what the previous one wrote
		carried := values
		if prev == nil || link.In == nil || prev.Name != link.In.Name || !grammar.SameLevel(prev.Level, link.In.Level) {
			carried = nil
		}

		var err error
		if link.Joins() {
			values, err = k.joinValues(lm, out, link, outLevel, carried)
		} else {
			inLevel := outLevel
			if link.In != nil && link.In.Level != nil {
				inLevel = *link.In.Level
			}
			src := carried
			if src == nil {
				src = out.OwnValues(inLevel)
			}
			values, err = convertLevel(out, src, inLevel, outLevel, link.Op)
		}
		if err != nil {
			return err
		}
		lastLayer, lastLevel = out, outLevel
		ref := link.Out
		prev = &ref
	}

	if lastLayer == nil {
		return nil
	}
	if err := lastLayer.SetFunction(k.id, lastLevel, values); err != nil {
		return err
	}
	if len(k.shaders) > 0 {
		k.pushFunction(lastLevel)
	}
	return nil
}

func (k *Knot) joinValues(lm *layer.Manager, out *layer.Layer, link grammar.Link, outLevel grammar.Level, carried [][]float64) ([][]float64, error) {
	if !out.JoinApplied() {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"knot %q: layer %q has no joined dataset for %q", k.id, out.ID(), link.In.Name)
	}
	inLevel := *link.In.Level
	jl, obj, ok := out.JoinFor(link.In.Name, inLevel, outLevel)
	if !ok {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"knot %q: no join of %q (%s) onto %q (%s)", k.id, link.In.Name, inLevel, out.ID(), outLevel)
	}
	rows := out.RowCount(outLevel)

	if jl.Abstract {
		if len(obj.InValues) != rows {
			return nil, errors.New(errors.ErrCodeDataIntegrity,
				"knot %q: %d joined values for %d records of %q", k.id, len(obj.InValues), rows, out.ID())
		}
		values := make([][]float64, rows)
		for i, v := range obj.InValues {
			values[i] = []float64{v}
		}
		return values, nil
	}

	src := carried
	if src == nil {
		in := lm.SearchByLayerID(link.In.Name)
		if in == nil {
			return nil, errors.New(errors.ErrCodeDataIntegrity, "knot %q: input layer %q not found", k.id, link.In.Name)
		}
		src = in.OwnValues(inLevel)
	}
	if len(obj.InIDs) != rows {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"knot %q: %d joined id lists for %d records of %q", k.id, len(obj.InIDs), rows, out.ID())
	}
	values := make([][]float64, rows)
	for i, ids := range obj.InIDs {
		var collected []float64
		for _, id := range ids {
			if id >= 0 && id < len(src) && len(src[id]) > 0 {
				collected = append(collected, src[id][0])
			}
		}
		values[i] = []float64{grammar.Aggregate(link.Op, collected)}
	}
	return values, nil
}

// convertLevel moves values between levels of one layer. Vertex levels
// share rows; OBJECTS rows are spread over or reduced from their vertices.
func convertLevel(l *layer.Layer, values [][]float64, from, to grammar.Level, op string) ([][]float64, error) {
	if len(values) != l.RowCount(from) {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"layer %q: %d values at %s, want %d", l.ID(), len(values), from, l.RowCount(from))
	}
	fromObjects := from == grammar.LevelObjects
	toObjects := to == grammar.LevelObjects
	if fromObjects == toObjects {
		return values, nil
	}

	spans := l.VertexSpans(grammar.LevelObjects)
	if fromObjects {
		return expand(spans, values, []float64{0}), nil
	}
	out := make([][]float64, len(spans))
	v := 0
	for i, n := range spans {
		vals := make([]float64, 0, n)
		for _, row := range values[v : v+n] {
			if len(row) > 0 {
				vals = append(vals, row[0])
			}
		}
		out[i] = []float64{grammar.Aggregate(op, vals)}
		v += n
	}
	return out, nil
}

// processOperation evaluates the operation of each link record by record,
// binding referenced knots by id. Later links see the running result under
// the operation knot's own id.
func (k *Knot) processOperation(lm *layer.Manager) error {
	if k.Pure() {
		return nil
	}
	level, _ := k.Level()
	rows := k.layer.RowCount(level)
	result := make([]float64, rows)

	for i, link := range k.spec.IntegrationScheme {
		op, err := grammar.CompileOperation(link.Op)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidGrammar, err, "knot %q link %d", k.id, i)
		}
		operands := map[string][][]float64{}
		for _, name := range []string{link.In.Name, link.Out.Name} {
			vals, err := k.operand(lm, name, rows)
			if err != nil {
				return err
			}
			operands[name] = vals
		}

		env := make(map[string]float64, len(operands)+1)
		for r := range rows {
			for name, vals := range operands {
				env[name] = first(vals[r])
			}
			if i > 0 {
				env[k.id] = result[r]
			}
			v, err := op.Eval(env)
			if err != nil {
				return errors.Wrap(errors.ErrCodeDataIntegrity, err, "knot %q record %d", k.id, r)
			}
			result[r] = v
		}
	}

	values := make([][]float64, rows)
	for r, v := range result {
		values[r] = []float64{v}
	}
	if err := k.layer.SetFunction(k.id, level, values); err != nil {
		return err
	}
	if len(k.shaders) > 0 {
		k.pushFunction(level)
	}
	return nil
}

// operand returns the function values of a referenced knot.
func (k *Knot) operand(lm *layer.Manager, knotID string, rows int) ([][]float64, error) {
	ref, ok := k.interp.KnotByID(knotID, k.viewID)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnresolvableKnot, "knot %q references unknown knot %q", k.id, knotID)
	}
	last := k.interp.KnotLastLink(ref, k.viewID)
	l := lm.SearchByLayerID(last.Out.Name)
	if l == nil || last.Out.Level == nil {
		return nil, errors.New(errors.ErrCodeDataIntegrity, "knot %q: operand %q has no output layer", k.id, knotID)
	}
	vals := l.FunctionByLevel(*last.Out.Level, knotID)
	if len(vals) != rows {
		return nil, errors.New(errors.ErrCodeDataIntegrity,
			"knot %q: operand %q has %d records, want %d", k.id, knotID, len(vals), rows)
	}
	return vals, nil
}

func first(row []float64) float64 {
	if len(row) == 0 {
		return 0
	}
	return row[0]
}
