package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadExpiration = "leads.expiration"

type LeadExpirationPayload struct {
	LeadID string `json:"leadId"`
}

func NewLeadExpirationTask(payload LeadExpirationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadExpiration, data), nil
}

func ParseLeadExpirationPayload(task *asynq.Task) (LeadExpirationPayload, error) {
	var payload LeadExpirationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadExpirationPayload{}, err
	}
	return payload, nil
}
