package query

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/trackerd/trackerd/internal/ontology"
)

// ParseError is a structured Xesam parse failure with line/column
// (§4.5 "Failure semantics": "a structured parse error with line/column").
type ParseError struct {
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string {
	if e.Line == 0 && e.Col == 0 {
		return fmt.Sprintf("xesam: %s", e.Msg)
	}
	return fmt.Sprintf("xesam: %d:%d: %s", e.Line, e.Col, e.Msg)
}

// Translation is the FROM/JOIN/WHERE fragment triple plus bound args a
// Xesam query compiles to (§4.5 "Produce three SQL fragments").
type Translation struct {
	From  string
	Join  string
	Where string
	Args  []any
}

type exprKind int

const (
	exprField exprKind = iota
	exprLiteral
	exprCompare
	exprBoolAnd
	exprBoolOr
)

// expr is one node of the parsed query tree; the same node type serves
// field references, typed literals, comparisons, and boolean combinators
// so the single frame stack below can push/pop uniformly.
type expr struct {
	kind     exprKind
	negate   bool
	op       string // comparison element name
	field    *expr  // exprCompare's field operand
	literal  *expr  // exprCompare's literal operand
	children []*expr

	fieldName   string // exprField
	literalKind string // exprLiteral: integer/date/string/float/boolean
	literalVal  string // exprLiteral
}

type frame struct {
	name  string
	attrs map[string]string
	exprs []*expr
	text  strings.Builder
}

var comparisonOps = map[string]bool{
	"equals": true, "greaterThan": true, "greaterOrEqual": true,
	"lessThan": true, "lessOrEqual": true, "contains": true,
	"regex": true, "startsWith": true, "inSet": true,
}

var literalKinds = map[string]bool{
	"integer": true, "date": true, "string": true, "float": true, "boolean": true,
}

// parsedQuery carries the root <query> element's attributes and its
// single top-level boolean/comparison child (nil for an empty query, which
// matches every row of the resolved service class).
type parsedQuery struct {
	content string
	source  string
	root    *expr
}

// parseXesam runs a single-pass, frame-stack parse over xmlDoc mirroring
// the GMarkup start/end-element state machine the grammar is grounded on
// (§4.5, `original_source/src/trackerd/tracker-xesam-query.c`), producing
// an expr tree instead of emitting SQL token-by-token.
func parseXesam(xmlDoc string) (*parsedQuery, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlDoc))

	var stack []*frame
	var root *parsedQuery

	errAt := func(msg string) error {
		return lineColError(xmlDoc, dec.InputOffset(), msg)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errAt(err.Error())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			attrs := make(map[string]string, len(t.Attr))
			for _, a := range t.Attr {
				attrs[a.Name.Local] = a.Value
			}
			stack = append(stack, &frame{name: t.Name.Local, attrs: attrs})

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errAt("unmatched closing element")
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if f.name == "query" {
				var child *expr
				if len(f.exprs) > 0 {
					child = f.exprs[0]
				}
				root = &parsedQuery{content: f.attrs["content"], source: f.attrs["source"], root: child}
				continue
			}

			e, err := finishFrame(f)
			if err != nil {
				return nil, lineColError(xmlDoc, dec.InputOffset(), err.Error())
			}
			if len(stack) == 0 {
				return nil, errAt("element outside of query root")
			}
			stack[len(stack)-1].exprs = append(stack[len(stack)-1].exprs, e)
		}
	}

	if len(stack) != 0 {
		return nil, &ParseError{Msg: "unclosed element at end of document"}
	}
	if root == nil {
		return nil, &ParseError{Msg: "missing root query element"}
	}
	return root, nil
}

func finishFrame(f *frame) (*expr, error) {
	switch {
	case f.name == "field":
		name := f.attrs["name"]
		if name == "" {
			return nil, fmt.Errorf("field element missing name attribute")
		}
		return &expr{kind: exprField, fieldName: name}, nil

	case f.name == "and" || f.name == "or":
		kind := exprBoolAnd
		if f.name == "or" {
			kind = exprBoolOr
		}
		return &expr{kind: kind, negate: boolAttr(f.attrs["negate"]), children: f.exprs}, nil

	case comparisonOps[f.name]:
		var fieldExpr, litExpr *expr
		for _, c := range f.exprs {
			switch c.kind {
			case exprField:
				fieldExpr = c
			case exprLiteral:
				litExpr = c
			}
		}
		if fieldExpr == nil || litExpr == nil {
			return nil, fmt.Errorf("%s requires a field and a literal operand", f.name)
		}
		return &expr{kind: exprCompare, op: f.name, negate: boolAttr(f.attrs["negate"]), field: fieldExpr, literal: litExpr}, nil

	case literalKinds[f.name]:
		return &expr{kind: exprLiteral, literalKind: f.name, literalVal: strings.TrimSpace(f.text.String())}, nil

	default:
		return nil, fmt.Errorf("unknown element %q", f.name)
	}
}

func boolAttr(v string) bool { return v == "true" || v == "1" }

func lineColError(doc string, offset int64, msg string) error {
	if offset < 0 || offset > int64(len(doc)) {
		return &ParseError{Msg: msg}
	}
	line, col := 1, 1
	for _, r := range doc[:offset] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &ParseError{Line: line, Col: col, Msg: msg}
}

// builder accumulates JOIN fragments and bound args while walking the
// expr tree. schema, when non-empty, qualifies every metadata_* table
// reference (e.g. "fm.") so the fragments resolve against a database
// ATTACHed under that name on the executing connection — the live-search
// matcher's way of joining Services (common db) against metadata tables
// that live in a different SQLite file (see query.Open Question decision
// on cross-database execution).
type builder struct {
	reg    *ontology.Registry
	schema string
	joins  []string
	args   []any
	aliasN int
}

func metaTableFor(kind ontology.FieldKind) (string, bool) {
	switch kind {
	case ontology.FieldString, ontology.FieldDate, ontology.FieldFullText:
		return "metadata_string", true
	case ontology.FieldInteger, ontology.FieldDouble:
		return "metadata_numeric", true
	case ontology.FieldKeyword, ontology.FieldIndex:
		return "metadata_keyword", true
	case ontology.FieldBlob:
		return "metadata_blob", true
	default:
		return "", false
	}
}

func (b *builder) exprSQL(e *expr) (string, error) {
	switch e.kind {
	case exprBoolAnd, exprBoolOr:
		return b.boolSQL(e)
	case exprCompare:
		return b.compareSQL(e)
	default:
		return "", &ParseError{Msg: "unexpected expression node"}
	}
}

func (b *builder) boolSQL(e *expr) (string, error) {
	parts := make([]string, 0, len(e.children))
	for _, c := range e.children {
		s, err := b.exprSQL(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	joiner := " AND "
	if e.kind == exprBoolOr {
		joiner = " OR "
	}
	sqlStr := "(" + strings.Join(parts, joiner) + ")"
	if e.negate {
		sqlStr = "NOT " + sqlStr
	}
	return sqlStr, nil
}

// compareSQL resolves e.field's name through the field alias map into the
// set of database field ids it covers, joins each one in, and emits a
// disjunction of the comparison across them (§4.5 "comparisons are emitted
// as disjunctions across that set").
func (b *builder) compareSQL(e *expr) (string, error) {
	ids := b.reg.ResolveFieldAliases(e.field.fieldName)
	if len(ids) == 0 {
		return "", &ParseError{Msg: fmt.Sprintf("unknown field %q", e.field.fieldName)}
	}

	var disj []string
	for _, id := range ids {
		field, ok := b.reg.FieldByID(id)
		if !ok {
			continue
		}
		table, ok := metaTableFor(field.Kind)
		if !ok {
			continue
		}
		b.aliasN++
		alias := fmt.Sprintf("m%d", b.aliasN)
		b.joins = append(b.joins, fmt.Sprintf(
			"INNER JOIN %s%s %s ON (S.id = %s.service_id AND %s.field_id = %d)",
			b.schema, table, alias, alias, alias, id))

		cond, err := b.predicate(e.op, alias, e.literal)
		if err != nil {
			return "", err
		}
		disj = append(disj, cond)
	}
	if len(disj) == 0 {
		return "", &ParseError{Msg: fmt.Sprintf("field %q resolved to no storable ids", e.field.fieldName)}
	}

	sqlStr := "(" + strings.Join(disj, " OR ") + ")"
	if e.negate {
		sqlStr = "NOT " + sqlStr
	}
	return sqlStr, nil
}

func (b *builder) predicate(op, alias string, lit *expr) (string, error) {
	col := alias + ".value"
	switch op {
	case "equals":
		if lit.literalKind == "string" && strings.Contains(lit.literalVal, "*") {
			// GLOB's wildcard is *, unlike LIKE's %; keep it as-is.
			b.args = append(b.args, lit.literalVal)
			return col + " GLOB ?", nil
		}
		v, err := bindLiteral(lit)
		if err != nil {
			return "", err
		}
		b.args = append(b.args, v)
		return col + " = ?", nil
	case "greaterThan", "greaterOrEqual", "lessThan", "lessOrEqual":
		v, err := bindLiteral(lit)
		if err != nil {
			return "", err
		}
		b.args = append(b.args, v)
		return col + " " + comparisonSymbol(op) + " ?", nil
	case "contains":
		b.args = append(b.args, "%"+lit.literalVal+"%")
		return col + " LIKE ?", nil
	case "startsWith":
		if strings.Contains(lit.literalVal, "*") {
			b.args = append(b.args, strings.ReplaceAll(lit.literalVal, "*", "%"))
		} else {
			b.args = append(b.args, lit.literalVal+"%")
		}
		return col + " LIKE ?", nil
	case "regex":
		b.args = append(b.args, lit.literalVal)
		return col + " REGEXP ?", nil
	case "inSet":
		parts := strings.Split(lit.literalVal, ",")
		placeholders := make([]string, len(parts))
		for i, p := range parts {
			placeholders[i] = "?"
			b.args = append(b.args, strings.TrimSpace(p))
		}
		return col + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	default:
		return "", &ParseError{Msg: fmt.Sprintf("unhandled comparison %q", op)}
	}
}

func comparisonSymbol(op string) string {
	switch op {
	case "greaterThan":
		return ">"
	case "greaterOrEqual":
		return ">="
	case "lessThan":
		return "<"
	case "lessOrEqual":
		return "<="
	default:
		return "="
	}
}

func bindLiteral(lit *expr) (any, error) {
	switch lit.literalKind {
	case "integer":
		n, err := strconv.ParseInt(lit.literalVal, 10, 64)
		if err != nil {
			return nil, &ParseError{Msg: "invalid integer literal"}
		}
		return n, nil
	case "float":
		f, err := strconv.ParseFloat(lit.literalVal, 64)
		if err != nil {
			return nil, &ParseError{Msg: "invalid float literal"}
		}
		return f, nil
	case "boolean":
		switch lit.literalVal {
		case "true":
			return int64(1), nil
		case "false":
			return int64(0), nil
		default:
			return nil, &ParseError{Msg: "invalid boolean literal"}
		}
	case "date":
		t, err := parseXesamDate(lit.literalVal)
		if err != nil {
			return nil, &ParseError{Msg: "invalid date literal"}
		}
		return t.Unix(), nil
	case "string":
		return lit.literalVal, nil
	default:
		return nil, &ParseError{Msg: "unknown literal kind"}
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseXesamDate(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// SniffRootClass reads just the root <query> element's content/source
// attributes without building the full expr tree, for callers (the
// live-search matcher) that need to pick a target schema before calling
// TranslateForSchema.
func SniffRootClass(xmlDoc string) (content, source string, err error) {
	dec := xml.NewDecoder(strings.NewReader(xmlDoc))
	for {
		tok, derr := dec.Token()
		if derr == io.EOF {
			return "", "", &ParseError{Msg: "missing root query element"}
		}
		if derr != nil {
			return "", "", lineColError(xmlDoc, dec.InputOffset(), derr.Error())
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "query" {
				return "", "", &ParseError{Msg: fmt.Sprintf("expected root element %q, got %q", "query", se.Name.Local)}
			}
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "content":
					content = a.Value
				case "source":
					source = a.Value
				}
			}
			return content, source, nil
		}
	}
}

// Translate compiles a Xesam XML query document into FROM/JOIN/WHERE SQL
// fragments against the field's owning metadata database (§4.5 "Structured
// RDF/Xesam query translation"). The returned fragments assume Services and
// the metadata_* tables are visible on the same connection; callers
// querying across the file/email database split must ATTACH the relevant
// metadata database onto the common handle first (dbengine.Manager.Path
// gives the file to attach).
func Translate(reg *ontology.Registry, xmlDoc string) (*Translation, error) {
	return TranslateForSchema(reg, xmlDoc, "")
}

// TranslateForSchema is Translate with every metadata_* table reference
// qualified by schema (e.g. "fm" to resolve against a database ATTACHed as
// `fm`). Pass "" for the unqualified form Translate uses.
func TranslateForSchema(reg *ontology.Registry, xmlDoc string, schema string) (*Translation, error) {
	parsed, err := parseXesam(xmlDoc)
	if err != nil {
		return nil, err
	}

	prefix := schema
	if prefix != "" {
		prefix += "."
	}
	b := &builder{reg: reg, schema: prefix}
	where := "1=1"
	if parsed.root != nil {
		w, err := b.exprSQL(parsed.root)
		if err != nil {
			return nil, err
		}
		where = w
	}

	className := parsed.content
	if className == "" {
		className = parsed.source
	}
	if className != "" {
		st, ok := reg.ServiceByName(className)
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("unknown service %q", className)}
		}
		where = fmt.Sprintf("(S.service_type_id = %d AND %s)", st.ID, where)
	}

	return &Translation{
		From:  "FROM Services S",
		Join:  strings.Join(b.joins, "\n"),
		Where: where,
		Args:  b.args,
	}, nil
}
