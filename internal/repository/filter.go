package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
)

// filterColumns maps the field names accepted in a filter onto risk_inputs columns
var filterColumns = map[string]string{
	"host.name":               "host_name",
	"user.name":               "user_name",
	"kibana.alert.rule.name":  "rule_name",
	"rule_name":               "rule_name",
	"kibana.alert.severity":   "severity",
	"severity":                "severity",
	"kibana.alert.risk_score": "risk_score",
	"risk_score":              "risk_score",
	"category":                "category",
	"_index":                  "index_name",
	"index":                   "index_name",
}

var rangeOperators = map[string]string{
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

// queryArgs collects positional arguments while a statement is assembled
type queryArgs struct {
	values []interface{}
}

func (q *queryArgs) add(v interface{}) string {
	q.values = append(q.values, v)
	return fmt.Sprintf("$%d", len(q.values))
}

// compileFilter translates a filter clause into a SQL condition. A nil or
// empty filter matches everything.
func compileFilter(filter map[string]interface{}, args *queryArgs) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}
	if len(filter) != 1 {
		return "", filterError("a filter clause must have exactly one key, got %d", len(filter))
	}

	for op, body := range filter {
		switch op {
		case "match_all":
			return "TRUE", nil
		case "term":
			return compileTerm(body, args)
		case "terms":
			return compileTerms(body, args)
		case "range":
			return compileRange(body, args)
		case "exists":
			return compileExists(body)
		case "bool":
			return compileBool(body, args)
		default:
			return "", filterError("unsupported filter clause %q", op)
		}
	}
	return "TRUE", nil
}

func compileTerm(body interface{}, args *queryArgs) (string, error) {
	field, value, err := singleField(body, "term")
	if err != nil {
		return "", err
	}
	column, err := columnFor(field)
	if err != nil {
		return "", err
	}
	// {"term": {"field": {"value": x}}} is the long form
	if m, ok := value.(map[string]interface{}); ok {
		value = m["value"]
	}
	v, err := scalar(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", column, args.add(v)), nil
}

func compileTerms(body interface{}, args *queryArgs) (string, error) {
	field, value, err := singleField(body, "terms")
	if err != nil {
		return "", err
	}
	column, err := columnFor(field)
	if err != nil {
		return "", err
	}
	list, ok := value.([]interface{})
	if !ok {
		return "", filterError("terms on %q requires a list of values", field)
	}
	if len(list) == 0 {
		return "FALSE", nil
	}

	placeholders := make([]string, 0, len(list))
	for _, item := range list {
		v, err := scalar(item)
		if err != nil {
			return "", err
		}
		placeholders = append(placeholders, args.add(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), nil
}

func compileRange(body interface{}, args *queryArgs) (string, error) {
	field, value, err := singleField(body, "range")
	if err != nil {
		return "", err
	}
	column, err := columnFor(field)
	if err != nil {
		return "", err
	}
	bounds, ok := value.(map[string]interface{})
	if !ok || len(bounds) == 0 {
		return "", filterError("range on %q requires bounds", field)
	}

	keys := make([]string, 0, len(bounds))
	for k := range bounds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	for _, k := range keys {
		op, ok := rangeOperators[k]
		if !ok {
			return "", filterError("unsupported range bound %q", k)
		}
		v, err := scalar(bounds[k])
		if err != nil {
			return "", err
		}
		conditions = append(conditions, fmt.Sprintf("%s %s %s", column, op, args.add(v)))
	}
	return strings.Join(conditions, " AND "), nil
}

func compileExists(body interface{}) (string, error) {
	m, ok := body.(map[string]interface{})
	if !ok {
		return "", filterError("exists requires an object")
	}
	field, ok := m["field"].(string)
	if !ok {
		return "", filterError("exists requires a field name")
	}
	column, err := columnFor(field)
	if err != nil {
		return "", err
	}
	return column + " IS NOT NULL", nil
}

func compileBool(body interface{}, args *queryArgs) (string, error) {
	m, ok := body.(map[string]interface{})
	if !ok {
		return "", filterError("bool requires an object")
	}

	var conditions []string
	for _, occur := range []string{"filter", "must", "must_not", "should"} {
		raw, present := m[occur]
		if !present {
			continue
		}
		clauses, err := clauseList(raw)
		if err != nil {
			return "", err
		}
		if len(clauses) == 0 {
			continue
		}

		compiled := make([]string, 0, len(clauses))
		for _, clause := range clauses {
			sql, err := compileFilter(clause, args)
			if err != nil {
				return "", err
			}
			compiled = append(compiled, "("+sql+")")
		}

		switch occur {
		case "filter", "must":
			conditions = append(conditions, compiled...)
		case "must_not":
			conditions = append(conditions, "NOT ("+strings.Join(compiled, " OR ")+")")
		case "should":
			conditions = append(conditions, "("+strings.Join(compiled, " OR ")+")")
		}
	}
	for k := range m {
		switch k {
		case "filter", "must", "must_not", "should", "minimum_should_match":
		default:
			return "", filterError("unsupported bool clause %q", k)
		}
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), nil
}

// clauseList accepts a single clause object or a list of them
func clauseList(raw interface{}) ([]map[string]interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{v}, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, filterError("bool clauses must be objects")
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, filterError("bool clauses must be objects")
	}
}

func singleField(body interface{}, op string) (string, interface{}, error) {
	m, ok := body.(map[string]interface{})
	if !ok || len(m) != 1 {
		return "", nil, filterError("%s requires exactly one field", op)
	}
	for field, value := range m {
		return field, value, nil
	}
	return "", nil, nil
}

func columnFor(field string) (string, error) {
	column, ok := filterColumns[field]
	if !ok {
		return "", filterError("field %q cannot be filtered on", field)
	}
	return column, nil
}

func scalar(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case string, bool, float64, int, int64:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, filterError("invalid number %q", x.String())
		}
		return f, nil
	default:
		return nil, filterError("unsupported filter value of type %T", v)
	}
}

func filterError(format string, args ...interface{}) error {
	return apperrors.ValidationError("invalid filter: "+fmt.Sprintf(format, args...), nil).WithField("filter")
}
