package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"spendsmart/internal/cache"
)

const (
	defaultBatchSize     = 25
	defaultMaxConcurrent = 3
	refineCacheSize      = 1024
	refineCacheTTL       = 24 * time.Hour
)

// OpenRouterConfig configures the hosted-model refiner.
type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration

	// BatchSize is the number of entries per model call (default 25).
	BatchSize int
	// MaxConcurrent bounds in-flight model calls (default 3).
	MaxConcurrent int64
}

// OpenRouter refines ambiguous categories through the OpenRouter chat API.
// Results are memoized per distinct (description, merchant, amount, type)
// tuple so repeated rows in one statement cost a single call.
type OpenRouter struct {
	cfg    OpenRouterConfig
	client *http.Client
	memo   *cache.LRUCache[string]
	sem    *semaphore.Weighted
}

// NewOpenRouter builds a refiner. The caller is expected to have checked
// that the API key and model are set.
func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &OpenRouter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		memo:   cache.NewLRUCache[string](refineCacheSize, refineCacheTTL),
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type batchItem struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	Merchant        string `json:"merchant"`
	Amount          string `json:"amount"`
	Type            string `json:"type"`
	CurrentCategory string `json:"current_category"`
}

// RefineBatch implements Refiner. Entries already memoized are answered
// from cache; the rest go to the model in fixed-size batches, each gated
// by the concurrency semaphore. Failures are logged and skipped.
func (o *OpenRouter) RefineBatch(ctx context.Context, entries []Entry) map[string]string {
	if len(entries) == 0 {
		return nil
	}

	results := make(map[string]string)
	var pending []Entry

	for _, entry := range entries {
		if cached, ok := o.memo.Get(memoKey(entry)); ok {
			results[entry.ID] = cached
			continue
		}
		pending = append(pending, entry)
	}

	for start := 0; start < len(pending); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		categories, err := o.classifyChunk(ctx, chunk)
		if err != nil {
			slog.WarnContext(ctx, "OpenRouter batch classification failed", "error", err, "batch_size", len(chunk))
			continue
		}

		for _, entry := range chunk {
			raw, ok := categories[entry.ID]
			if !ok {
				continue
			}
			normalized := Normalize(raw)
			if normalized == "" {
				slog.InfoContext(ctx, "OpenRouter returned unrecognised category", "transaction_id", entry.ID, "category", raw)
				continue
			}
			o.memo.Set(memoKey(entry), normalized)
			results[entry.ID] = normalized
		}
	}

	return results
}

func (o *OpenRouter) classifyChunk(ctx context.Context, chunk []Entry) (map[string]string, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire classifier slot: %w", err)
	}
	defer o.sem.Release(1)

	items := make([]batchItem, len(chunk))
	for i, entry := range chunk {
		merchant := entry.Merchant
		if merchant == "" {
			merchant = "Unknown"
		}
		current := entry.CurrentCategory
		if current == "" {
			current = "None"
		}
		items[i] = batchItem{
			ID:              entry.ID,
			Description:     entry.Description,
			Merchant:        merchant,
			Amount:          entry.Amount,
			Type:            entry.Type,
			CurrentCategory: current,
		}
	}

	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	reqBody := chatRequest{
		Model:       o.cfg.Model,
		Temperature: 0,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: "You are an expert financial assistant that categorizes banking transactions. " +
					"Choose the single most appropriate category from the provided list and respond with valid JSON. " +
					"Valid categories: " + strings.Join(Canonical, ", "),
			},
			{
				Role: "user",
				Content: "For each transaction below, respond with a JSON array where every item has the keys 'id' and 'category'. " +
					"Match categories exactly from the approved list. If you are unsure, choose 'Others'.\n\n" + string(itemsJSON),
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openrouter status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response")
	}

	return parseBatchContent(parsed.Choices[0].Message.Content), nil
}

// parseBatchContent extracts id→category pairs from model output. Models
// sometimes wrap JSON in code fences or nest the array under a key; both
// shapes are tolerated.
func parseBatchContent(content string) map[string]string {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return nil
	}

	items, ok := decoded.([]any)
	if !ok {
		obj, isObj := decoded.(map[string]any)
		if !isObj {
			return nil
		}
		for _, key := range []string{"transactions", "items", "results"} {
			if nested, found := obj[key].([]any); found {
				items = nested
				break
			}
		}
		if items == nil {
			items = []any{decoded}
		}
	}

	results := make(map[string]string)
	for _, raw := range items {
		item, isMap := raw.(map[string]any)
		if !isMap {
			continue
		}
		id, idOK := item["id"].(string)
		category, catOK := item["category"].(string)
		if idOK && catOK {
			results[id] = category
		}
	}
	return results
}

func memoKey(entry Entry) string {
	return strings.Join([]string{
		entry.Description,
		entry.Merchant,
		entry.Amount,
		strings.ToLower(entry.Type),
	}, "|")
}
