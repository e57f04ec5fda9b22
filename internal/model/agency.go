package model

import "time"

// Agency is the stored form of a responding agency and its alert overrides.
type Agency struct {
	AgencyID   uint   `gorm:"primaryKey;column:agency_id" json:"agency_id"`
	SystemID   uint   `gorm:"index;not null;column:system_id" json:"system_id"`
	AgencyCode string `gorm:"size:64;not null" json:"agency_code"`
	AgencyName string `gorm:"size:200;not null" json:"agency_name"`

	ATone         *float64 `gorm:"column:a_tone" json:"a_tone"`
	BTone         *float64 `gorm:"column:b_tone" json:"b_tone"`
	CTone         *float64 `gorm:"column:c_tone" json:"c_tone"`
	DTone         *float64 `gorm:"column:d_tone" json:"d_tone"`
	ToneTolerance float64  `json:"tone_tolerance"`
	IgnoreTime    float64  `json:"ignore_time"`

	MQTTTopic             string  `gorm:"column:mqtt_topic" json:"mqtt_topic"`
	MQTTStartAlertMessage string  `gorm:"column:mqtt_start_alert_message" json:"mqtt_start_alert_message"`
	MQTTEndAlertMessage   string  `gorm:"column:mqtt_end_alert_message" json:"mqtt_end_alert_message"`
	MQTTMessageInterval   float64 `gorm:"column:mqtt_message_interval" json:"mqtt_message_interval"`

	PushoverGroupToken string `json:"pushover_group_token"`
	PushoverAppToken   string `json:"pushover_app_token"`
	PushoverSubject    string `json:"pushover_subject"`
	PushoverBody       string `json:"pushover_body"`
	PushoverSound      string `json:"pushover_sound"`

	WebhookURL         string            `gorm:"column:webhook_url" json:"webhook_url"`
	WebhookHeadersJSON string            `gorm:"column:webhook_headers" json:"-"`
	WebhookHeaders     map[string]string `gorm:"-" json:"webhook_headers"`

	EnableFacebookPost int `json:"enable_facebook_post"`
	EnableTelegramPost int `json:"enable_telegram_post"`

	Emails    []AgencyEmail `gorm:"foreignKey:AgencyID;constraint:OnDelete:CASCADE" json:"-"`
	EmailList []string      `gorm:"-" json:"agency_emails"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

// AgencyEmail is one alert recipient specific to an agency.
type AgencyEmail struct {
	ID           uint   `gorm:"primaryKey"`
	AgencyID     uint   `gorm:"index;not null"`
	EmailAddress string `gorm:"not null;size:320"`
}
