// internal/service/market/application/filter.go
package application

import (
	"fmt"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"

	"agrinexus/internal/service/market/domain"
)

const (
	// 过滤表达式来自请求参数，缓存按 LRU 淘汰
	filterCacheSize = 512
	// 单次求值的代价上限，超出视为不匹配
	filterCostLimit = 10000
)

// FilterCompiler 编译并缓存 CEL 过滤表达式，表达式在 SQL 过滤之后逐条执行。
type FilterCompiler struct {
	env   *cel.Env
	cache *lru.Cache[string, cel.Program]
}

func newFilterCompiler(opts ...cel.EnvOption) (*FilterCompiler, error) {
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	cache, err := lru.New[string, cel.Program](filterCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter cache: %w", err)
	}
	return &FilterCompiler{env: env, cache: cache}, nil
}

// NewCardFilterCompiler 可用变量与卡片 JSON 字段同名。
func NewCardFilterCompiler() (*FilterCompiler, error) {
	return newFilterCompiler(
		cel.Variable("card_type", cel.StringType),
		cel.Variable("crop_name", cel.StringType),
		cel.Variable("variety", cel.StringType),
		cel.Variable("quantity", cel.DoubleType),
		cel.Variable("available_quantity", cel.DoubleType),
		cel.Variable("unit", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("is_active", cel.BoolType),
		cel.Variable("owner_id", cel.StringType),
		cel.Variable("price", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewListingFilterCompiler 可用变量与挂牌 JSON 字段同名。
func NewListingFilterCompiler() (*FilterCompiler, error) {
	return newFilterCompiler(
		cel.Variable("crop_name", cel.StringType),
		cel.Variable("variety", cel.StringType),
		cel.Variable("quantity", cel.DoubleType),
		cel.Variable("unit", cel.StringType),
		cel.Variable("quality_grade", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("farmer_id", cel.StringType),
		cel.Variable("price", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// Compile 返回表达式对应的程序。表达式必须是 bool 类型。
func (c *FilterCompiler) Compile(expr string) (cel.Program, error) {
	if prg, ok := c.cache.Get(expr); ok {
		return prg, nil
	}

	ast, iss := c.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, domain.ErrInvalidFilter.Withf("%s", iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, domain.ErrInvalidFilter.Withf("expression must evaluate to bool, got %s", out)
	}
	prg, err := c.env.Program(ast, cel.CostLimit(filterCostLimit))
	if err != nil {
		return nil, domain.ErrInvalidFilter.Withf("%s", err)
	}

	c.cache.Add(expr, prg)
	return prg, nil
}

// Match 执行程序；运行期错误（例如访问不存在的 price.amount 或超出代价上限）视为不匹配。
func Match(prg cel.Program, vars map[string]any) bool {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

func priceVars(p domain.Price) map[string]any {
	m := map[string]any{"type": string(p.Type)}
	if p.Amount != nil {
		m["amount"] = *p.Amount
	}
	if p.Min != nil {
		m["min"] = *p.Min
	}
	if p.Max != nil {
		m["max"] = *p.Max
	}
	return m
}

func cardVars(c *domain.MarketCard) map[string]any {
	return map[string]any{
		"card_type":          string(c.CardType),
		"crop_name":          c.CropName,
		"variety":            c.Variety,
		"quantity":           c.Quantity,
		"available_quantity": c.AvailableQuantity,
		"unit":               c.Unit,
		"location":           c.Location,
		"is_active":          c.IsActive,
		"owner_id":           c.OwnerID,
		"price":              priceVars(c.Price),
	}
}

func listingVars(l *domain.ProduceListing) map[string]any {
	return map[string]any{
		"crop_name":     l.CropName,
		"variety":       l.Variety,
		"quantity":      l.Quantity,
		"unit":          l.Unit,
		"quality_grade": l.QualityGrade,
		"location":      l.Location,
		"status":        string(l.Status),
		"farmer_id":     l.FarmerID,
		"price":         priceVars(l.Price),
	}
}
