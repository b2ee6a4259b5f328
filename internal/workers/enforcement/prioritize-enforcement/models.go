// internal/workers/enforcement/prioritize-enforcement/models.go
package prioritizeenforcement

import "tourism-compliance/internal/models"

type Input struct {
	City              string `json:"city,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	SendNotifications bool   `json:"sendNotifications,omitempty"`
}

type Output struct {
	Summary          models.EnforcementSummary  `json:"summary"`
	Targets          []models.EnforcementTarget `json:"targets"`
	TargetCount      int                        `json:"targetCount"`
	TopReportID      string                     `json:"topReportId,omitempty"`
	NotificationSent bool                       `json:"notificationSent"`
}
