package scrbench

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/njchilds90/scrbench/catalog"
	"github.com/njchilds90/scrbench/constraint"
	"github.com/njchilds90/scrbench/store"
	"github.com/njchilds90/scrbench/symbolic"
)

// MaxToolSampleSize bounds the rows a single tool call may generate.
const MaxToolSampleSize = 100_000

// ============================================================
// Tool Interface
// ============================================================

type ToolRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

type ToolResponse struct {
	Result any    `json:"result,omitempty"`
	String string `json:"string,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Tools answers tool calls against a catalog, reusing one benchmark, and so
// one constraint sample cache, per equation.
type Tools struct {
	catalog *catalog.Catalog
	opts    []Option
	logger  *slog.Logger
	archive store.Store

	mu         sync.Mutex
	benchmarks map[string]*Benchmark
}

// NewTools serves the equations of c; opts apply to every benchmark built.
func NewTools(c *catalog.Catalog, logger *slog.Logger, opts ...Option) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	base := []Option{WithCatalog(c), WithLogger(logger)}
	return &Tools{
		catalog:    c,
		opts:       append(base, opts...),
		logger:     logger,
		benchmarks: map[string]*Benchmark{},
	}
}

// Archive records every successful create_dataset and check_constraints call
// in s, which must already be initialized.
func (t *Tools) Archive(s store.Store) *Tools {
	t.archive = s
	return t
}

func (t *Tools) record(name string, kind store.Kind, p params, outcome any) {
	if t.archive == nil {
		return
	}
	run, err := store.NewRun(name, kind, p, outcome)
	if err == nil {
		err = t.archive.SaveRun(context.Background(), run)
	}
	if err != nil {
		t.logger.Warn("archiving run failed", "equation", name, "kind", kind, "error", err)
	}
}

func (t *Tools) benchmark(name string) (*Benchmark, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.benchmarks[name]; ok {
		return b, nil
	}
	b, err := New(name, t.opts...)
	if err != nil {
		return nil, err
	}
	t.benchmarks[name] = b
	return b, nil
}

type params map[string]any

func (p params) str(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing param: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %s must be a string", key)
	}
	return s, nil
}

func (p params) strOr(key, def string) (string, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	return p.str(key)
}

func (p params) num(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("missing param: %s", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("param %s must be a number", key)
	}
	return f, nil
}

func (p params) numOr(key string, def float64) (float64, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	return p.num(key)
}

func (p params) intOr(key string, def int) (int, error) {
	f, err := p.numOr(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("param %s must be an integer", key)
	}
	return int(f), nil
}

func (p params) boolOr(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %s must be a boolean", key)
	}
	return b, nil
}

func (p params) strs(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("missing param: %s", key)
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("param %s must be array", key)
	}
	out := make([]string, len(raw))
	for i, r := range raw {
		s, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("param %s[%d] must be string", key, i)
		}
		out[i] = s
	}
	return out, nil
}

func fail(err error) ToolResponse { return ToolResponse{Error: err.Error()} }

// Handle dispatches one tool call. Failures are reported in the response.
func (t *Tools) Handle(req ToolRequest) ToolResponse {
	p := params(req.Params)
	if p == nil {
		p = params{}
	}

	switch req.Tool {
	case "list_equations":
		names := t.catalog.Names()
		return ToolResponse{Result: names, String: fmt.Sprintf("%d equations", len(names))}

	case "equation_info":
		name, err := p.str("name")
		if err != nil {
			return fail(err)
		}
		b, err := t.benchmark(name)
		if err != nil {
			return fail(err)
		}
		info, err := Describe(b, t.catalog)
		if err != nil {
			return fail(err)
		}
		return ToolResponse{Result: info, String: info.Expression}

	case "create_dataset":
		return t.createDataset(p)

	case "check_constraints":
		return t.checkConstraints(p)

	case "stationary_points":
		name, err := p.str("name")
		if err != nil {
			return fail(err)
		}
		exclude, err := p.boolOr("exclude_saddle", false)
		if err != nil {
			return fail(err)
		}
		b, err := t.benchmark(name)
		if err != nil {
			return fail(err)
		}
		points := b.Equation().FindStationaryPoints(exclude)
		return ToolResponse{Result: points, String: fmt.Sprintf("%d stationary points", len(points))}

	case "parse":
		text, err := p.str("expr")
		if err != nil {
			return fail(err)
		}
		e, err := symbolic.Parse(text)
		if err != nil {
			return fail(err)
		}
		return ToolResponse{Result: symbolic.Encode(e), String: e.String()}

	case "derivative":
		text, err := p.str("expr")
		if err != nil {
			return fail(err)
		}
		vars, err := p.strs("vars")
		if err != nil {
			return fail(err)
		}
		if len(vars) == 0 || len(vars) > 2 {
			return ToolResponse{Error: "vars must name one or two variables"}
		}
		e, err := symbolic.Parse(text)
		if err != nil {
			return fail(err)
		}
		for _, v := range vars {
			e = symbolic.Diff(e, v)
		}
		return ToolResponse{Result: symbolic.Encode(e), String: e.String()}

	case "list_runs":
		if t.archive == nil {
			return ToolResponse{Error: "no run archive configured"}
		}
		name, err := p.strOr("name", "")
		if err != nil {
			return fail(err)
		}
		runs, err := t.archive.ListRuns(context.Background(), name)
		if err != nil {
			return fail(err)
		}
		return ToolResponse{Result: runs, String: fmt.Sprintf("%d runs", len(runs))}

	case "tool_spec":
		return ToolResponse{Result: ToolSpec(), String: "tool specification"}
	}

	return ToolResponse{Error: fmt.Sprintf("unknown tool: %s", req.Tool)}
}

func (t *Tools) createDataset(p params) ToolResponse {
	name, err := p.str("name")
	if err != nil {
		return fail(err)
	}
	size, err := p.intOr("sample_size", 1000)
	if err != nil {
		return fail(err)
	}
	if size > MaxToolSampleSize {
		return ToolResponse{Error: fmt.Sprintf("sample_size %d exceeds %d", size, MaxToolSampleSize)}
	}
	noise, err := p.numOr("noise_level", 0)
	if err != nil {
		return fail(err)
	}
	patience, err := p.intOr("patience", DefaultPatience)
	if err != nil {
		return fail(err)
	}
	display, err := p.boolOr("use_display_names", false)
	if err != nil {
		return fail(err)
	}
	var seed *uint64
	if _, ok := p["seed"]; ok {
		s, err := p.intOr("seed", 0)
		if err != nil {
			return fail(err)
		}
		if s < 0 {
			return ToolResponse{Error: "param seed must be non-negative"}
		}
		u := uint64(s)
		seed = &u
	}

	b, err := t.benchmark(name)
	if err != nil {
		return fail(err)
	}
	train, _, err := b.CreateDataframe(size, noise, seed, patience, display)
	if err != nil {
		return fail(err)
	}
	rows := make([][]float64, train.Rows())
	for i := range rows {
		rows[i] = train.Data.RawRowView(i)
	}
	t.record(name, store.KindDataset, p, map[string]any{"rows": len(rows), "columns": train.Columns})
	return ToolResponse{
		Result: map[string]any{"columns": train.Columns, "rows": rows},
		String: fmt.Sprintf("%d rows of %s", len(rows), name),
	}
}

func (t *Tools) checkConstraints(p params) ToolResponse {
	name, err := p.str("name")
	if err != nil {
		return fail(err)
	}
	candidate, err := p.str("candidate")
	if err != nil {
		return fail(err)
	}
	backendName, err := p.strOr("backend", string(BackendSymbolic))
	if err != nil {
		return fail(err)
	}
	backend, err := ParseBackend(backendName)
	if err != nil {
		return fail(err)
	}
	display, err := p.boolOr("use_display_names", false)
	if err != nil {
		return fail(err)
	}
	b, err := t.benchmark(name)
	if err != nil {
		return fail(err)
	}
	res, err := b.CheckConstraints(candidate, backend, display)
	if err != nil {
		return fail(err)
	}
	verdict := "passed"
	if !res.Passed {
		verdict = fmt.Sprintf("violated %v", res.ViolatedIDs())
	}
	t.record(name, store.KindCheck, p, map[string]any{"passed": res.Passed, "violations": res.ViolatedIDs()})
	return ToolResponse{Result: res, String: verdict}
}

// Info summarizes an equation and its constraints.
type Info struct {
	Name          string                  `json:"name"`
	Expression    string                  `json:"expression"`
	Raw           string                  `json:"raw"`
	Variables     []string                `json:"variables"`
	DisplayNames  []string                `json:"display_names"`
	Output        string                  `json:"output"`
	Sampling      []string                `json:"sampling"`
	OperatorCount int                     `json:"operator_count"`
	DomainSpan    float64                 `json:"domain_span"`
	Constraints   []constraint.Constraint `json:"constraints"`
}

// Describe collects the Info of a benchmark's equation.
func Describe(b *Benchmark, c *catalog.Catalog) (Info, error) {
	eq := b.Equation()
	raw, err := c.RawExpression(eq.Name())
	if err != nil {
		return Info{}, wrapConfig(err)
	}
	info := Info{
		Name:          eq.Name(),
		Expression:    eq.Expr().String(),
		Raw:           raw,
		Variables:     eq.VariableNames(false),
		DisplayNames:  eq.VariableNames(true),
		Output:        eq.OutputName(),
		OperatorCount: eq.OperatorCount(),
		DomainSpan:    eq.DomainSpan(),
		Constraints:   b.Constraints(),
	}
	for _, obj := range eq.Objectives() {
		info.Sampling = append(info.Sampling, fmt.Sprint(obj))
	}
	return info, nil
}

// ============================================================
// Tool spec
// ============================================================

func ToolSpec() string {
	tools := []map[string]any{
		ts("list_equations", "List catalog equation names", []string{}, map[string]string{}),
		ts("equation_info", "Expression, variables, sampling ranges and constraints of an equation",
			[]string{"name"}, map[string]string{"name": "string"}),
		ts("create_dataset", "Generate a training table. Optional: sample_size, noise_level in [0,1], seed, patience, use_display_names",
			[]string{"name"}, map[string]string{"name": "string", "sample_size": "integer", "noise_level": "number",
				"seed": "integer", "patience": "integer", "use_display_names": "boolean"}),
		ts("check_constraints", "Check a candidate expression against the declared derivative signs. backend: symbolic | autodiff",
			[]string{"name", "candidate"}, map[string]string{"name": "string", "candidate": "string",
				"backend": "string", "use_display_names": "boolean"}),
		ts("stationary_points", "Points where the gradient of the equation vanishes",
			[]string{"name"}, map[string]string{"name": "string", "exclude_saddle": "boolean"}),
		ts("parse", "Parse expression text into its JSON tree", []string{"expr"}, map[string]string{"expr": "string"}),
		ts("derivative", "First or second partial derivative of an expression", []string{"expr", "vars"},
			map[string]string{"expr": "string", "vars": "array"}),
		ts("list_runs", "Archived dataset and check runs, optionally for one equation",
			[]string{}, map[string]string{"name": "string"}),
		ts("tool_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i]["name"].(string) < tools[j]["name"].(string) })
	b, _ := json.MarshalIndent(map[string]any{"tools": tools}, "", "  ")
	return string(b)
}

func ts(name, description string, required []string, props map[string]string) map[string]any {
	properties := map[string]any{}
	for k, typ := range props {
		properties[k] = map[string]any{"type": typ}
	}
	return map[string]any{
		"name":        name,
		"description": description,
		"inputSchema": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
