package api

import (
	"time"

	"postsync/internal/core/domain"
)

// workflowResponse is the JSON body for status and workflow calls.
type workflowResponse struct {
	Success        bool       `json:"success"`
	InvocationID   string     `json:"invocationId,omitempty"`
	RunID          string     `json:"runId,omitempty"`
	State          string     `json:"state,omitempty"`
	Status         string     `json:"status,omitempty"`
	Attempts       int        `json:"attempts,omitempty"`
	Rows           int        `json:"rows"`
	Inserted       int        `json:"inserted"`
	Skipped        int        `json:"skipped"`
	CSVURL         string     `json:"csvUrl,omitempty"`
	UsedFallback   bool       `json:"usedFallback"`
	SheetsUpdated  bool       `json:"sheetsUpdated"`
	SheetsMessage  string     `json:"sheetsMessage,omitempty"`
	Message        string     `json:"message,omitempty"`
	Error          string     `json:"error,omitempty"`
	CheckStatusURL string     `json:"checkStatusUrl,omitempty"`
	Instructions   string     `json:"instructions,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func newWorkflowResponse(res *domain.WorkflowResult) workflowResponse {
	if res == nil {
		return workflowResponse{}
	}
	body := workflowResponse{
		Success:       res.Success,
		InvocationID:  res.InvocationID,
		RunID:         res.RunID,
		State:         res.State,
		Status:        string(res.Status),
		Attempts:      res.Attempts,
		Rows:          res.Persist.Processed,
		Inserted:      res.Persist.Inserted,
		Skipped:       res.Persist.Skipped,
		CSVURL:        res.Persist.ArtifactURL,
		UsedFallback:  res.Persist.UsedFallback,
		SheetsUpdated: res.Persist.SheetsUpdated,
		SheetsMessage: res.Persist.SheetsMessage,
		Message:       res.Message,
		Error:         res.ErrorDetail,
	}
	if !res.CompletedAt.IsZero() {
		completed := res.CompletedAt
		body.CompletedAt = &completed
	}
	return body
}
