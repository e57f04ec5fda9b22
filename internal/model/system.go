package model

import "time"

// System is the stored form of a radio system and its per-channel settings.
type System struct {
	SystemID        uint   `gorm:"primaryKey;column:system_id" json:"system_id"`
	SystemShortName string `gorm:"size:100" json:"system_short_name"`
	SystemName      string `gorm:"not null;size:200;uniqueIndex" json:"system_name"`
	SystemCounty    string `gorm:"size:100" json:"system_county"`
	SystemState     string `gorm:"size:10" json:"system_state"`
	SystemFIPS      string `gorm:"column:system_fips;size:20" json:"system_fips"`
	SystemAPIKey    string `gorm:"column:system_api_key;size:64" json:"system_api_key"`

	EmailEnabled      int    `json:"email_enabled"`
	SMTPHostname      string `gorm:"column:smtp_hostname" json:"smtp_hostname"`
	SMTPPort          *int   `gorm:"column:smtp_port" json:"smtp_port"`
	SMTPUsername      string `gorm:"column:smtp_username" json:"smtp_username"`
	SMTPPassword      string `gorm:"column:smtp_password" json:"smtp_password"`
	SMTPSecurity      int    `gorm:"column:smtp_security" json:"smtp_security"`
	EmailAddressFrom  string `json:"email_address_from"`
	EmailTextFrom     string `json:"email_text_from"`
	EmailAlertSubject string `json:"email_alert_subject"`
	EmailAlertBody    string `json:"email_alert_body"`

	MQTTEnabled  int    `gorm:"column:mqtt_enabled" json:"mqtt_enabled"`
	MQTTHostname string `gorm:"column:mqtt_hostname" json:"mqtt_hostname"`
	MQTTPort     *int   `gorm:"column:mqtt_port" json:"mqtt_port"`
	MQTTUsername string `gorm:"column:mqtt_username" json:"mqtt_username"`
	MQTTPassword string `gorm:"column:mqtt_password" json:"mqtt_password"`

	PushoverEnabled       int    `json:"pushover_enabled"`
	PushoverAllGroupToken string `json:"pushover_all_group_token"`
	PushoverAllAppToken   string `json:"pushover_all_app_token"`
	PushoverSubject       string `json:"pushover_subject"`
	PushoverBody          string `json:"pushover_body"`
	PushoverSound         string `json:"pushover_sound"`

	FacebookEnabled        int    `json:"facebook_enabled"`
	FacebookPageID         string `gorm:"column:facebook_page_id" json:"facebook_page_id"`
	FacebookPageToken      string `json:"facebook_page_token"`
	FacebookGroupID        string `gorm:"column:facebook_group_id" json:"facebook_group_id"`
	FacebookGroupToken     string `json:"facebook_group_token"`
	FacebookCommentEnabled int    `json:"facebook_comment_enabled"`
	FacebookPostBody       string `json:"facebook_post_body"`
	FacebookCommentBody    string `json:"facebook_comment_body"`

	TelegramEnabled   int    `json:"telegram_enabled"`
	TelegramBotToken  string `json:"telegram_bot_token"`
	TelegramChannelID string `gorm:"column:telegram_channel_id" json:"telegram_channel_id"`

	SCPEnabled      int    `gorm:"column:scp_enabled" json:"scp_enabled"`
	SCPHost         string `gorm:"column:scp_host" json:"scp_host"`
	SCPPort         *int   `gorm:"column:scp_port" json:"scp_port"`
	SCPUsername     string `gorm:"column:scp_username" json:"scp_username"`
	SCPPassword     string `gorm:"column:scp_password" json:"scp_password"`
	SCPPrivateKey   string `gorm:"column:scp_private_key" json:"scp_private_key"`
	SCPRemoteFolder string `gorm:"column:scp_remote_folder" json:"scp_remote_folder"`
	WebURLPath      string `gorm:"column:web_url_path" json:"web_url_path"`
	SCPArchiveDays  int    `gorm:"column:scp_archive_days" json:"scp_archive_days"`

	WebhookEnabled     int               `json:"webhook_enabled"`
	WebhookURL         string            `gorm:"column:webhook_url" json:"webhook_url"`
	WebhookHeadersJSON string            `gorm:"column:webhook_headers" json:"-"`
	WebhookHeaders     map[string]string `gorm:"-" json:"webhook_headers"`

	StreamURL string `gorm:"column:stream_url" json:"stream_url"`

	AlertEmails []SystemAlertEmail `gorm:"foreignKey:SystemID;constraint:OnDelete:CASCADE" json:"-"`
	// AlertEmailList is the ", "-joined projection of AlertEmails.
	AlertEmailList string   `gorm:"-" json:"system_alert_emails"`
	Agencies       []Agency `gorm:"foreignKey:SystemID;constraint:OnDelete:CASCADE" json:"agencies,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

// SystemAlertEmail is one recipient of every alert raised for a system.
type SystemAlertEmail struct {
	ID       uint   `gorm:"primaryKey"`
	SystemID uint   `gorm:"index;not null;uniqueIndex:idx_system_alert_email"`
	Email    string `gorm:"not null;size:320;uniqueIndex:idx_system_alert_email"`
}
