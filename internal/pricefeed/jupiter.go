package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"RewardLedger/internal/config"
	"RewardLedger/internal/interfaces"
	"RewardLedger/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// maxIDsPerRequest Jupiter price v3 单次最多查询的 mint 数
const maxIDsPerRequest = 50

// JupiterClient Jupiter 价格 API 客户端
type JupiterClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ interfaces.PriceFetcher = (*JupiterClient)(nil)

// NewJupiterClient 创建 Jupiter 客户端
func NewJupiterClient(cfg config.PriceFeedConfig, logger *logrus.Logger) *JupiterClient {
	return &JupiterClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

func (c *JupiterClient) Name() string { return "jupiter" }

// priceEntry price v3 响应中单个 mint 的报价
type priceEntry struct {
	USDPrice       float64 `json:"usdPrice"`
	BlockID        int64   `json:"blockId"`
	Decimals       int     `json:"decimals"`
	PriceChange24h float64 `json:"priceChange24h"`
}

// FetchPrices 按批次请求 /price/v3?ids=...，任一批失败即返回错误
func (c *JupiterClient) FetchPrices(ctx context.Context, mints []string) (map[string]float64, error) {
	out := make(map[string]float64, len(mints))
	for start := 0; start < len(mints); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(mints) {
			end = len(mints)
		}
		batch, err := c.fetchBatch(ctx, mints[start:end])
		if err != nil {
			return nil, err
		}
		for mint, p := range batch {
			out[mint] = p
		}
	}
	return out, nil
}

func (c *JupiterClient) fetchBatch(ctx context.Context, mints []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(mints, ","))
	reqURL := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建行情请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 Jupiter 价格失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 Jupiter 响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Jupiter 价格 API 返回 %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload map[string]*priceEntry
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("解析 Jupiter 响应失败: %w", err)
	}

	prices := make(map[string]float64, len(payload))
	for mint, entry := range payload {
		if entry == nil || entry.USDPrice <= 0 || math.IsInf(entry.USDPrice, 0) || math.IsNaN(entry.USDPrice) {
			c.logger.WithField("mint", mint).Debug("Jupiter 未返回有效价格")
			continue
		}
		prices[mint] = entry.USDPrice
	}
	return prices, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
