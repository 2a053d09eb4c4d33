package interfaces

import "context"

// PriceFetcher 外部行情数据源：按 mint 批量拉取 USD 价格。
// 未报价的 mint 不出现在结果中，不视为错误
type PriceFetcher interface {
	Name() string
	FetchPrices(ctx context.Context, mints []string) (map[string]float64, error)
}
