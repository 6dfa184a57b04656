package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"blueprint-forge/internal/model"
)

// HTTPGenerator 远端生成服务客户端
//
// 协议：POST {endpoint}/v1/generate 与 POST {endpoint}/v1/fix，
// 请求与响应均为 JSON。连接失败、超时、非 2xx 状态码都视为
// 协议层失败并包装 ErrUnavailable。
type HTTPGenerator struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// request 生成/修复请求体
type request struct {
	Prompt     string                     `json:"prompt"`
	Technology model.TechnologyDescriptor `json:"technology"`
}

// NewHTTP 创建远端生成服务客户端
func NewHTTP(endpoint, token string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPGenerator{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate 请求生成安装脚本
func (g *HTTPGenerator) Generate(ctx context.Context, goal string, d model.TechnologyDescriptor) (*Result, error) {
	return g.post(ctx, "/v1/generate", goal, d)
}

// Fix 请求修复脚本
func (g *HTTPGenerator) Fix(ctx context.Context, instruction string, d model.TechnologyDescriptor) (*Result, error) {
	return g.post(ctx, "/v1/fix", instruction, d)
}

func (g *HTTPGenerator) post(ctx context.Context, path, prompt string, d model.TechnologyDescriptor) (*Result, error) {
	body, err := json.Marshal(request{Prompt: prompt, Technology: d})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}

	return &result, nil
}
