// internal/service/order/infrastructure/rule/cel_rule.go
package rule

import (
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/domain/port"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// CELRule 是 port.DraftRule 的 CEL 实现。
// 表达式在启动时编译一次，之后每次只做求值。
//
// 可用变量:
//
//	items      list(map)  每一项包含 itemRef / count / itemName
//	address    map        addressLine1 / addressLine2 / city / country
//	totalCount int        所有订单行数量之和
type CELRule struct {
	expr    string
	program cel.Program
}

var _ port.DraftRule = (*CELRule)(nil)

// NewCELRule 编译表达式；表达式必须返回 bool
func NewCELRule(expr string) (*CELRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("items", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		cel.Variable("address", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("totalCount", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile acceptance rule %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("acceptance rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build program for %q", expr)
	}
	return &CELRule{expr: expr, program: prg}, nil
}

// Evaluate 实现了 port.DraftRule 接口。
func (r *CELRule) Evaluate(order *domain.Order) (bool, error) {
	out, _, err := r.program.Eval(facts(order))
	if err != nil {
		return false, errors.Wrapf(err, "evaluate acceptance rule %q", r.expr)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.Errorf("acceptance rule %q returned %T", r.expr, out.Value())
	}
	return ok, nil
}

func (r *CELRule) String() string {
	return r.expr
}

// facts 把订单转换成 CEL 可以直接识别的 map/list
func facts(order *domain.Order) map[string]any {
	items := make([]any, len(order.Items))
	for i, it := range order.Items {
		items[i] = map[string]any{
			"itemRef":  it.ItemRef,
			"count":    int64(it.Count),
			"itemName": it.ItemName,
		}
	}
	return map[string]any{
		"items": items,
		"address": map[string]string{
			"addressLine1": order.Address.AddressLine1,
			"addressLine2": order.Address.AddressLine2,
			"city":         order.Address.City,
			"country":      order.Address.Country,
		},
		"totalCount": int64(order.TotalCount()),
	}
}
