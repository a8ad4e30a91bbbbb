package pipedrive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

const (
	defaultBaseURL = "https://api.pipedrive.com/v1"

	// minimum spacing between requests, to stay under the upstream rate limit
	requestPace = 100 * time.Millisecond

	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

// Client talks to the Pipedrive v1 API. It implements usecase.CRMGateway.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

func NewClient(baseURL, apiToken string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) ListUsers(ctx context.Context) ([]*entity.User, error) {
	items, err := c.get(ctx, "/users", nil)
	if err != nil {
		return nil, err
	}

	users := make([]*entity.User, 0, len(items))
	for _, item := range items {
		var dto userDTO
		if err := json.Unmarshal(item, &dto); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, &entity.User{
			ID:    dto.ID,
			Name:  dto.Name,
			Email: dto.Email,
			Raw:   json.RawMessage(item),
		})
	}
	return users, nil
}

func (c *Client) ListPipelines(ctx context.Context) ([]*entity.Pipeline, error) {
	items, err := c.get(ctx, "/pipelines", nil)
	if err != nil {
		return nil, err
	}

	pipelines := make([]*entity.Pipeline, 0, len(items))
	for _, item := range items {
		var dto pipelineDTO
		if err := json.Unmarshal(item, &dto); err != nil {
			return nil, fmt.Errorf("decode pipeline: %w", err)
		}
		pipelines = append(pipelines, &entity.Pipeline{
			ID:   dto.ID,
			Name: dto.Name,
			Raw:  json.RawMessage(item),
		})
	}
	return pipelines, nil
}

func (c *Client) ListStages(ctx context.Context, pipelineID int) ([]*entity.Stage, error) {
	items, err := c.get(ctx, fmt.Sprintf("/pipelines/%d/stages", pipelineID), nil)
	if err != nil {
		return nil, err
	}

	stages := make([]*entity.Stage, 0, len(items))
	for _, item := range items {
		var dto stageDTO
		if err := json.Unmarshal(item, &dto); err != nil {
			return nil, fmt.Errorf("decode stage: %w", err)
		}
		if dto.PipelineID == 0 {
			dto.PipelineID = pipelineID
		}
		stages = append(stages, &entity.Stage{
			ID:         dto.ID,
			PipelineID: dto.PipelineID,
			Name:       dto.Name,
			OrderNo:    dto.OrderNo,
			Raw:        json.RawMessage(item),
		})
	}
	return stages, nil
}

func (c *Client) ListDeals(ctx context.Context, offset, limit, ownerID int) ([]*entity.Deal, error) {
	q := url.Values{}
	q.Set("start", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("include_fields", "custom_fields")
	if ownerID != 0 {
		q.Set("user_id", strconv.Itoa(ownerID))
	}
	return c.deals(ctx, q)
}

func (c *Client) ListDealsSince(ctx context.Context, since time.Time, ownerID int) ([]*entity.Deal, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("include_fields", "custom_fields")
	if ownerID != 0 {
		q.Set("user_id", strconv.Itoa(ownerID))
	}
	return c.deals(ctx, q)
}

func (c *Client) StageHistory(ctx context.Context, dealID int) ([]*entity.StageEvent, error) {
	items, err := c.get(ctx, fmt.Sprintf("/deals/%d/flow", dealID), nil)
	if err != nil {
		return nil, err
	}

	events := make([]*entity.StageEvent, 0, len(items))
	for _, item := range items {
		var dto stageHistoryDTO
		if err := json.Unmarshal(item, &dto); err != nil {
			return nil, fmt.Errorf("decode stage history: %w", err)
		}
		enteredAt, err := parseTime(dto.EnteredAt)
		if err != nil {
			return nil, fmt.Errorf("stage history entered_at: %w", err)
		}
		events = append(events, &entity.StageEvent{
			DealID:     dto.DealID,
			PipelineID: dto.PipelineID,
			StageID:    dto.StageID,
			EnteredAt:  enteredAt,
			Source:     entity.StageEventSourceFlow,
		})
	}
	return events, nil
}

func (c *Client) deals(ctx context.Context, q url.Values) ([]*entity.Deal, error) {
	items, err := c.get(ctx, "/deals", q)
	if err != nil {
		return nil, err
	}

	deals := make([]*entity.Deal, 0, len(items))
	for _, item := range items {
		deal, err := mapDeal(item)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	return deals, nil
}

func mapDeal(item rawItem) (*entity.Deal, error) {
	var dto dealDTO
	if err := json.Unmarshal(item, &dto); err != nil {
		return nil, fmt.Errorf("decode deal: %w", err)
	}

	addTime, err := parseTime(dto.AddTime)
	if err != nil {
		return nil, fmt.Errorf("deal %d add_time: %w", dto.ID, err)
	}
	updateTime, err := parseTime(dto.UpdateTime)
	if err != nil {
		return nil, fmt.Errorf("deal %d update_time: %w", dto.ID, err)
	}

	deal := &entity.Deal{
		ID:         dto.ID,
		Title:      dto.Title,
		OrgID:      dto.OrgID,
		OrgName:    dto.OrgName,
		OwnerID:    dto.OwnerID,
		OwnerName:  dto.OwnerName,
		PipelineID: dto.PipelineID,
		StageID:    dto.StageID,
		Status:     dto.Status,
		AddTime:    addTime,
		UpdateTime: updateTime,
		Raw:        json.RawMessage(item),
	}

	if dto.WonTime != "" {
		t, err := parseTime(dto.WonTime)
		if err != nil {
			return nil, fmt.Errorf("deal %d won_time: %w", dto.ID, err)
		}
		deal.WonTime = &t
	}
	if dto.ExpectedCloseDate != "" {
		t, err := time.ParseInLocation(dateLayout, dto.ExpectedCloseDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("deal %d expected_close_date: %w", dto.ID, err)
		}
		deal.ExpectedCloseDate = &t
	}
	return deal, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]rawItem, error) {
	c.pace()

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.apiToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pipedrive %s: status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("pipedrive %s: %w", path, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("pipedrive %s: %s", path, env.Error)
	}
	return env.Data, nil
}

// pace spaces consecutive requests at least requestPace apart.
func (c *Client) pace() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := requestPace - time.Since(c.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	c.lastCall = time.Now()
}
