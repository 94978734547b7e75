// Package foodsearch はNutritionix食品データベースAPIのクライアントを提供する。
// APIキーをクライアント側に埋め込まず、サーバー経由で検索を中継するために使用する。
package foodsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// defaultBaseURL はNutritionix APIのベースURL。
const defaultBaseURL = "https://trackapi.nutritionix.com/v2"

// Photo は食品のサムネイル画像。
type Photo struct {
	Thumb string `json:"thumb"`
}

// CommonFood は一般食品の検索候補。
type CommonFood struct {
	FoodName    string  `json:"food_name"`
	ServingQty  float64 `json:"serving_qty"`
	ServingUnit string  `json:"serving_unit"`
	TagID       string  `json:"tag_id"`
	Photo       Photo   `json:"photo"`
}

// BrandedFood はブランド食品の検索候補。
type BrandedFood struct {
	FoodName    string  `json:"food_name"`
	BrandName   string  `json:"brand_name"`
	ServingQty  float64 `json:"serving_qty"`
	ServingUnit string  `json:"serving_unit"`
	NixItemID   string  `json:"nix_item_id"`
	Calories    float64 `json:"nf_calories"`
	Photo       Photo   `json:"photo"`
}

// SearchResult はインクリメンタル検索の結果。
type SearchResult struct {
	Common  []CommonFood  `json:"common"`
	Branded []BrandedFood `json:"branded"`
}

// Food は食品1件分の栄養情報。
type Food struct {
	FoodName    string  `json:"food_name"`
	BrandName   string  `json:"brand_name"`
	ServingQty  float64 `json:"serving_qty"`
	ServingUnit string  `json:"serving_unit"`
	Calories    float64 `json:"nf_calories"`
	Protein     float64 `json:"nf_protein"`
	Carbs       float64 `json:"nf_total_carbohydrate"`
	Fats        float64 `json:"nf_total_fat"`
	Photo       Photo   `json:"photo"`
}

// Client はNutritionix APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	appID      string
	appKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, appID, appKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    defaultBaseURL,
		appID:      appID,
		appKey:     appKey,
	}
}

// Search は食品名のインクリメンタル検索を行い、一般食品とブランド食品の候補を返す。
func (c *Client) Search(ctx context.Context, query string) (*SearchResult, error) {
	reqURL := c.baseURL + "/search/instant?query=" + url.QueryEscape(query)

	body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &result, nil
}

// Nutrients は自然文の食品説明（例: "1 cup rice and 2 eggs"）から
// 食品ごとの栄養情報を取得する。
func (c *Client) Nutrients(ctx context.Context, query string) ([]Food, error) {
	reqBody, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/natural/nutrients", reqBody)
	if err != nil {
		return nil, err
	}

	var result struct {
		Foods []Food `json:"foods"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return result.Foods, nil
}

// Item はブランド食品IDから栄養情報を取得する。
func (c *Client) Item(ctx context.Context, nixItemID string) (*Food, error) {
	reqURL := c.baseURL + "/search/item?nix_item_id=" + url.QueryEscape(nixItemID)

	body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Foods []Food `json:"foods"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(result.Foods) == 0 {
		return nil, fmt.Errorf("指定されたブランド食品が見つかりません: %s", nixItemID)
	}

	return &result.Foods[0], nil
}

// do はNutritionix APIへのHTTPリクエストを実行し、レスポンスボディを返す。
func (c *Client) do(ctx context.Context, method, reqURL string, reqBody []byte) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-app-id", c.appID)
	req.Header.Set("x-app-key", c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("食品データベースAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("食品データベースAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("食品データベースAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, nil
}
