package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTrialSweep is the periodic sweep that expires stale trials.
	TaskTrialSweep = "tenants:trial_sweep"
	// TaskCertScan is the periodic certification expiry scan.
	TaskCertScan = "compliance:cert_scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewTrialSweepTask constructs the trial sweep task.
func NewTrialSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTrialSweep, nil)
}

// NewCertScanTask constructs the certification scan task.
func NewCertScanTask() *asynq.Task {
	return asynq.NewTask(TaskCertScan, nil)
}
