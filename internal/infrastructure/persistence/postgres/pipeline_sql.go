package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE RUNNER
// A pipeline compiles to one statement: match, search, sort and the window
// run in a CTE together with COUNT(*) OVER(); documents and joins are built
// with jsonb_build_object for the window rows only.
// ══════════════════════════════════════════════════════════════════════════════

// PipelineRunner implements pipeline.Runner for PostgreSQL.
type PipelineRunner struct {
	conn *Connection
}

// NewPipelineRunner creates a new PipelineRunner.
func NewPipelineRunner(conn *Connection) *PipelineRunner {
	return &PipelineRunner{conn: conn}
}

var _ pipeline.Runner = (*PipelineRunner)(nil)

// Run implements pipeline.Runner.
func (r *PipelineRunner) Run(ctx context.Context, p *pipeline.Pipeline, w pipeline.Window) (*pipeline.Result, error) {
	c, err := compile(p, w)
	if err != nil {
		return nil, err
	}
	metrics.PipelineRuns.WithLabelValues(p.Collection, "postgres").Inc()

	res := &pipeline.Result{Documents: make([]pipeline.Document, 0)}
	err = r.conn.Query(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw, &res.Total); err != nil {
				return err
			}
			doc, err := c.decode(raw)
			if err != nil {
				return err
			}
			res.Documents = append(res.Documents, doc)
		}
		return nil
	}, c.query, c.args...)
	if err != nil {
		return nil, translate("pipeline", "Run", err, nil)
	}

	// COUNT(*) OVER() has no row to ride on past the end of the set
	if len(res.Documents) == 0 && w.Offset > 0 {
		if err := r.conn.QueryRow(ctx, c.countQuery, c.countArgs, &res.Total); err != nil {
			return nil, translate("pipeline", "Run", err, nil)
		}
	}
	return res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Compiler
// ─────────────────────────────────────────────────────────────────────────────

type compiled struct {
	query      string
	args       []interface{}
	countQuery string
	countArgs  []interface{}
	schema     *pipeline.Schema
	joins      []pipeline.JoinSpec
}

type argList struct {
	args []interface{}
}

func (a *argList) add(v interface{}) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

type compiler struct {
	args   argList
	nAlias int
}

func (c *compiler) alias() string {
	c.nAlias++
	return fmt.Sprintf("j%d", c.nAlias)
}

func invalid(format string, args ...interface{}) error {
	return shared.NewDomainError("pipeline", "Compile", shared.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func column(alias, field string) string {
	return alias + "." + ident(field)
}

func compile(p *pipeline.Pipeline, w pipeline.Window) (*compiled, error) {
	schema, ok := pipeline.SchemaOf(p.Collection)
	if !ok {
		return nil, invalid("unknown collection %q", p.Collection)
	}
	table := ident(schema.Collection)

	c := &compiler{}
	var where []string
	var order string
	var joins []pipeline.JoinSpec
	var exclude []string

	for _, st := range p.Stages {
		switch st.Kind {
		case pipeline.StageMatch:
			conds, err := c.conditions(schema, "t0", st.Match)
			if err != nil {
				return nil, err
			}
			where = append(where, conds...)
			if st.Visibility != nil {
				where = append(where, c.visibility(schema, "t0", st.Visibility))
			}
		case pipeline.StageSearch:
			where = append(where, c.search(schema, "t0", st.Search))
		case pipeline.StageSort:
			o, err := orderBy(schema, "t0", st.Sort)
			if err != nil {
				return nil, err
			}
			order = o
		case pipeline.StageJoin:
			joins = append(joins, *st.Join)
		case pipeline.StageProject:
			exclude = append(exclude, st.Project.Exclude...)
		default:
			return nil, invalid("unsupported stage %s", st.Kind)
		}
	}
	if order == "" {
		o, _ := orderBy(schema, "t0", &pipeline.SortSpec{Field: schema.DefaultSort, Direction: pipeline.Desc})
		order = o
	}

	filter := whereClause(where)
	countArgs := append([]interface{}(nil), c.args.args...)
	countQuery := `SELECT COUNT(*) FROM ` + table + ` t0` + filter

	window := ""
	if w.Limit > 0 {
		window += " LIMIT " + c.args.add(w.Limit)
	}
	if w.Offset > 0 {
		window += " OFFSET " + c.args.add(w.Offset)
	}

	doc, err := c.document(schema, "t0", nil, joins, exclude)
	if err != nil {
		return nil, err
	}

	query := `WITH page AS (
	SELECT t0.*, COUNT(*) OVER() AS total__
	FROM ` + table + ` t0` + filter + `
	ORDER BY ` + order + window + `
)
SELECT ` + doc + ` AS doc, t0.total__
FROM page t0
ORDER BY ` + order

	return &compiled{
		query:      query,
		args:       c.args.args,
		countQuery: countQuery,
		countArgs:  countArgs,
		schema:     schema,
		joins:      joins,
	}, nil
}

func (c *compiler) conditions(schema *pipeline.Schema, alias string, conds []pipeline.Condition) ([]string, error) {
	out := make([]string, 0, len(conds))
	for _, cond := range conds {
		if !schema.Has(cond.Field) {
			return nil, invalid("%s has no field %q", schema.Collection, cond.Field)
		}
		out = append(out, column(alias, cond.Field)+" = "+c.args.add(cond.Value))
	}
	return out, nil
}

// visibility keeps published rows and, for a known viewer, the viewer's own.
func (c *compiler) visibility(schema *pipeline.Schema, alias string, v *pipeline.Visibility) string {
	published := column(alias, v.PublishedField)
	if v.Viewer == "" || !schema.Has(v.OwnerField) {
		return published
	}
	return "(" + published + " OR " + column(alias, v.OwnerField) + " = " + c.args.add(v.Viewer) + ")"
}

// search is a case-insensitive substring match; LIKE wildcards in the
// query are matched literally.
func (c *compiler) search(schema *pipeline.Schema, alias string, s *pipeline.SearchSpec) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s.Query)
	arg := c.args.add("%" + escaped + "%")
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		parts = append(parts, column(alias, f)+" ILIKE "+arg)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// orderBy sorts by the field with the insertion sequence as tie-breaker in
// the same direction. Strings compare bytewise like the memory engine.
func orderBy(schema *pipeline.Schema, alias string, s *pipeline.SortSpec) (string, error) {
	f, ok := schema.Fields[s.Field]
	if !ok || !f.Sortable {
		return "", invalid("cannot sort %s by %q", schema.Collection, s.Field)
	}
	dir := " DESC"
	if s.Direction == pipeline.Asc {
		dir = " ASC"
	}
	col := column(alias, s.Field)
	if f.Type == pipeline.TypeString {
		col += ` COLLATE "C"`
	}
	return col + dir + ", " + column(alias, pipeline.SeqField) + dir, nil
}

// document builds the jsonb expression of one row: the picked fields, then
// every join in order, then the projection.
func (c *compiler) document(schema *pipeline.Schema, alias string, fields []string, joins []pipeline.JoinSpec, exclude []string) (string, error) {
	if fields == nil {
		fields = sortedFields(schema)
	}
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		if !schema.Has(f) {
			continue
		}
		pairs = append(pairs, literal(f)+", "+column(alias, f))
	}
	expr := "jsonb_build_object(" + strings.Join(pairs, ", ") + ")"

	for i := range joins {
		j := &joins[i]
		sub, err := c.join(schema, alias, j)
		if err != nil {
			return "", err
		}
		if j.Kind == pipeline.JoinProfile && j.As != j.LocalField {
			expr = "(" + expr + " - " + literal(j.LocalField) + ")"
		}
		expr = "(" + expr + " || jsonb_build_object(" + literal(j.As) + ", " + sub + "))"
	}
	for _, f := range exclude {
		expr = "(" + expr + " - " + literal(f) + ")"
	}
	return expr, nil
}

// sortedFields keeps the SQL text stable across runs.
func sortedFields(schema *pipeline.Schema) []string {
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *compiler) join(local *pipeline.Schema, alias string, j *pipeline.JoinSpec) (string, error) {
	foreign, ok := pipeline.SchemaOf(j.Collection)
	if !ok {
		return "", invalid("unknown join collection %q", j.Collection)
	}
	lf, ok := local.Fields[j.LocalField]
	if !ok {
		return "", invalid("%s has no field %q", local.Collection, j.LocalField)
	}
	if !foreign.Has(j.ForeignField) {
		return "", invalid("%s has no field %q", foreign.Collection, j.ForeignField)
	}

	fa := c.alias()
	table := ident(foreign.Collection) + " " + fa
	ref := column(alias, j.LocalField)
	filters, err := c.conditions(foreign, fa, j.Filters)
	if err != nil {
		return "", err
	}
	if v := j.Visibility; v != nil {
		filters = append(filters, c.visibility(foreign, fa, v))
	}

	switch j.Kind {
	case pipeline.JoinProfile:
		doc, err := c.document(foreign, fa, j.Fields, nil, nil)
		if err != nil {
			return "", err
		}
		cond := append([]string{column(fa, j.ForeignField) + " = " + ref}, filters...)
		return "(SELECT " + doc + " FROM " + table + whereClause(cond) +
			" ORDER BY " + column(fa, pipeline.SeqField) + " LIMIT 1)", nil

	case pipeline.JoinCount:
		cond := append([]string{column(fa, j.ForeignField) + " = " + ref}, filters...)
		return "(SELECT COUNT(*) FROM " + table + whereClause(cond) + ")", nil

	case pipeline.JoinPresence:
		cond := append([]string{column(fa, j.ForeignField) + " = " + ref}, filters...)
		return "EXISTS (SELECT 1 FROM " + table + whereClause(cond) + ")", nil

	case pipeline.JoinExpand:
		doc, err := c.document(foreign, fa, j.Fields, j.Nested, nil)
		if err != nil {
			return "", err
		}
		if lf.Type == pipeline.TypeStringList {
			cond := append([]string{column(fa, j.ForeignField) + " = u.ref"}, filters...)
			return "(SELECT COALESCE(jsonb_agg(x.doc ORDER BY x.ord), '[]'::jsonb) FROM (" +
				"SELECT DISTINCT ON (u.ord) u.ord, " + doc + " AS doc" +
				" FROM unnest(" + ref + ") WITH ORDINALITY AS u(ref, ord), " + table +
				whereClause(cond) +
				" ORDER BY u.ord, " + column(fa, pipeline.SeqField) + ") x)", nil
		}
		cond := append([]string{column(fa, j.ForeignField) + " = " + ref}, filters...)
		return "(SELECT " + doc + " FROM " + table + whereClause(cond) +
			" ORDER BY " + column(fa, pipeline.SeqField) + " LIMIT 1)", nil

	default:
		return "", invalid("unsupported join %s", j.Kind)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Decoding
// jsonb loses Go types; values are restored from the schema so documents
// look the same as the memory engine's.
// ─────────────────────────────────────────────────────────────────────────────

func (c *compiled) decode(raw []byte) (pipeline.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return decodeDoc(c.schema, c.joins, m), nil
}

func decodeDoc(schema *pipeline.Schema, joins []pipeline.JoinSpec, m map[string]interface{}) pipeline.Document {
	doc := make(pipeline.Document, len(m))
	for k, v := range m {
		if j := joinByName(joins, k); j != nil {
			doc[k] = decodeJoin(j, v)
			continue
		}
		if f, ok := schema.Fields[k]; ok {
			doc[k] = decodeValue(f.Type, v)
			continue
		}
		doc[k] = v
	}
	return doc
}

func joinByName(joins []pipeline.JoinSpec, as string) *pipeline.JoinSpec {
	for i := len(joins) - 1; i >= 0; i-- {
		if joins[i].As == as {
			return &joins[i]
		}
	}
	return nil
}

func decodeJoin(j *pipeline.JoinSpec, v interface{}) interface{} {
	foreign, _ := pipeline.SchemaOf(j.Collection)
	switch j.Kind {
	case pipeline.JoinCount:
		return decodeValue(pipeline.TypeInt, v)
	case pipeline.JoinPresence:
		b, _ := v.(bool)
		return b
	case pipeline.JoinProfile:
		if m, ok := v.(map[string]interface{}); ok {
			return decodeDoc(foreign, nil, m)
		}
		return nil
	case pipeline.JoinExpand:
		switch x := v.(type) {
		case map[string]interface{}:
			return decodeDoc(foreign, j.Nested, x)
		case []interface{}:
			list := make([]pipeline.Document, 0, len(x))
			for _, item := range x {
				if m, ok := item.(map[string]interface{}); ok {
					list = append(list, decodeDoc(foreign, j.Nested, m))
				}
			}
			return list
		}
		return nil
	}
	return v
}

func decodeValue(t pipeline.FieldType, v interface{}) interface{} {
	switch t {
	case pipeline.TypeInt:
		if n, ok := v.(json.Number); ok {
			i, _ := n.Int64()
			return i
		}
		return int64(0)
	case pipeline.TypeFloat:
		if n, ok := v.(json.Number); ok {
			f, _ := n.Float64()
			return f
		}
		return float64(0)
	case pipeline.TypeTime:
		if s, ok := v.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return ts.UTC()
			}
		}
		return time.Time{}
	case pipeline.TypeStringList:
		list := []string{}
		if xs, ok := v.([]interface{}); ok {
			for _, x := range xs {
				if s, ok := x.(string); ok {
					list = append(list, s)
				}
			}
		}
		return list
	case pipeline.TypeBool:
		b, _ := v.(bool)
		return b
	default:
		s, _ := v.(string)
		return s
	}
}
