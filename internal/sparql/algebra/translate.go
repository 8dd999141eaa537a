package algebra

import (
	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
)

// Translate lowers a parsed query into a logical plan. Translation is
// deterministic: triple patterns join left-deep in source order, and
// solution modifiers wrap the pattern as
// Slice(Distinct(Project(OrderBy(...)))), so ordering still sees
// variables the projection drops.
func Translate(q *parser.Query) (Node, error) {
	switch q.Form {
	case parser.FormSelect:
		return translateSelect(q.Select)
	case parser.FormAsk:
		node, err := translateGroup(q.Ask.Where)
		if err != nil {
			return nil, err
		}
		return &Slice{Input: node, Offset: 0, Limit: 1}, nil
	case parser.FormConstruct:
		return translateGroup(q.Construct.Where)
	default:
		return nil, graperr.Errorf(graperr.CodeTranslateUnsupported, "unsupported query form %d", q.Form)
	}
}

func translateSelect(sel *parser.SelectQuery) (Node, error) {
	node, err := translateGroup(sel.Where)
	if err != nil {
		return nil, err
	}

	grouped := len(sel.GroupBy) > 0
	for _, item := range sel.Items {
		if item.Aggregate != nil {
			grouped = true
		}
	}

	var projection []string
	if grouped {
		group := &Group{Input: node}
		for _, v := range sel.GroupBy {
			group.By = append(group.By, v.Name)
		}
		keys := make(map[string]struct{}, len(group.By))
		for _, name := range group.By {
			keys[name] = struct{}{}
		}
		for _, item := range sel.Items {
			switch {
			case item.Aggregate != nil:
				agg := &Aggregation{
					Func:      item.Aggregate.Func,
					Distinct:  item.Aggregate.Distinct,
					Star:      item.Aggregate.Star,
					Separator: item.Aggregate.Separator,
					Alias:     item.Alias.Name,
				}
				if item.Aggregate.Arg != nil {
					agg.Var = item.Aggregate.Arg.Name
				}
				group.Aggregations = append(group.Aggregations, agg)
				projection = append(projection, item.Alias.Name)
			default:
				if _, ok := keys[item.Variable.Name]; !ok {
					return nil, graperr.Errorf(graperr.CodeTranslateUnsupported,
						"variable ?%s is projected but not grouped", item.Variable.Name)
				}
				projection = append(projection, item.Variable.Name)
			}
		}
		if sel.Items == nil {
			return nil, graperr.Errorf(graperr.CodeTranslateUnsupported,
				"SELECT * cannot be combined with GROUP BY")
		}
		node = group
	} else if sel.Items != nil {
		for _, item := range sel.Items {
			projection = append(projection, item.Variable.Name)
		}
	}

	if len(sel.OrderBy) > 0 {
		node = &OrderBy{Input: node, Conditions: sel.OrderBy}
	}
	node = &Project{Input: node, Variables: projection}
	if sel.Distinct {
		node = &Distinct{Input: node}
	}
	if sel.Limit != nil || sel.Offset != nil {
		slice := &Slice{Input: node, Limit: -1}
		if sel.Limit != nil {
			slice.Limit = *sel.Limit
		}
		if sel.Offset != nil {
			slice.Offset = *sel.Offset
		}
		node = slice
	}
	return node, nil
}

// translateGroup lowers one group graph pattern. Adjacent triple
// patterns collapse into a single BGP; everything else joins left-deep
// in source order. Filters attach to the whole group after its other
// elements, matching SPARQL's group-level filter scope.
func translateGroup(gp *parser.GraphPattern) (Node, error) {
	if gp.Kind == parser.KindUnion {
		left, err := translateGroup(gp.Elements[0].Child)
		if err != nil {
			return nil, err
		}
		right, err := translateGroup(gp.Elements[1].Child)
		if err != nil {
			return nil, err
		}
		return &Union{Left: left, Right: right}, nil
	}

	var (
		current Node
		pending []*parser.TriplePattern
		filters []parser.Expression
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		bgp := &BGP{Patterns: pending}
		pending = nil
		current = join(current, bgp)
	}

	for _, elem := range gp.Elements {
		switch {
		case elem.Triple != nil:
			pending = append(pending, elem.Triple)

		case elem.Filter != nil:
			filters = append(filters, elem.Filter.Expression)

		case elem.Bind != nil:
			flush()
			if current == nil {
				current = &BGP{}
			}
			current = &Extend{
				Input:      current,
				Variable:   elem.Bind.Variable.Name,
				Expression: elem.Bind.Expression,
			}

		case elem.Child != nil:
			flush()
			child, err := translateGroup(elem.Child)
			if err != nil {
				return nil, err
			}
			switch elem.Child.Kind {
			case parser.KindOptional:
				if current == nil {
					current = &BGP{}
				}
				// Filters inside the OPTIONAL group stay in child, where
				// they see the left bindings during evaluation.
				current = &LeftJoin{Left: current, Right: child}
			case parser.KindMinus:
				if current == nil {
					current = &BGP{}
				}
				current = &Minus{Left: current, Right: child}
			default:
				current = join(current, child)
			}
		}
	}
	flush()
	if current == nil {
		current = &BGP{}
	}
	for _, expr := range filters {
		current = &Filter{Input: current, Expression: expr}
	}
	return current, nil
}

func join(left, right Node) Node {
	if left == nil {
		return right
	}
	return &Join{Left: left, Right: right}
}
