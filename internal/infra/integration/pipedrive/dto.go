package pipedrive

// Wire types for the Pipedrive v1 API. Timestamps arrive as
// "2006-01-02 15:04:05" in UTC, dates as "2006-01-02".

type envelope struct {
	Success bool      `json:"success"`
	Data    []rawItem `json:"data"`
	Error   string    `json:"error"`
}

// rawItem keeps the undecoded JSON of each element so the original payload
// can be stored verbatim for audit/replay.
type rawItem []byte

func (r *rawItem) UnmarshalJSON(data []byte) error {
	*r = append((*r)[0:0], data...)
	return nil
}

type userDTO struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type pipelineDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type stageDTO struct {
	ID         int    `json:"id"`
	PipelineID int    `json:"pipeline_id"`
	Name       string `json:"name"`
	OrderNo    int    `json:"order_no"`
}

type dealDTO struct {
	ID                int    `json:"id"`
	Title             string `json:"title"`
	OrgID             int    `json:"org_id"`
	OrgName           string `json:"org_name"`
	OwnerID           int    `json:"owner_id"`
	OwnerName         string `json:"owner_name"`
	PipelineID        int    `json:"pipeline_id"`
	StageID           int    `json:"stage_id"`
	Status            string `json:"status"`
	AddTime           string `json:"add_time"`
	UpdateTime        string `json:"update_time"`
	WonTime           string `json:"won_time"`
	ExpectedCloseDate string `json:"expected_close_date"`
}

type stageHistoryDTO struct {
	DealID     int    `json:"deal_id"`
	StageID    int    `json:"stage_id"`
	PipelineID int    `json:"pipeline_id"`
	EnteredAt  string `json:"entered_at"`
}
