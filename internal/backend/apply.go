package backend

import (
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/model"
	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/storage"
)

const (
	fieldSystemID          = "system_id"
	fieldSystemAlertEmails = "system_alert_emails"
	fieldAgencyID          = "agency_id"
	fieldAgencyCode        = "agency_code"
	fieldAgencyEmails      = "agency_emails"
)

func applySystemValues(system *model.System, values formValues) error {
	var problems fieldErrors

	values.assignText("system_short_name", &system.SystemShortName, "")
	values.assignText("system_name", &system.SystemName, "")
	values.assignText("system_county", &system.SystemCounty, "")
	values.assignText("system_state", &system.SystemState, "")
	values.assignText("system_fips", &system.SystemFIPS, "")
	values.assignText("system_api_key", &system.SystemAPIKey, "")

	problems.add(values.assignFlag("email_enabled", &system.EmailEnabled))
	values.assignText("smtp_hostname", &system.SMTPHostname, "")
	problems.add(values.assignOptionalInt("smtp_port", &system.SMTPPort, nil))
	values.assignText("smtp_username", &system.SMTPUsername, "")
	values.assignRaw("smtp_password", &system.SMTPPassword, "")
	problems.add(values.assignInt("smtp_security", &system.SMTPSecurity, DefaultSMTPSecurity))
	values.assignText("email_address_from", &system.EmailAddressFrom, DefaultEmailAddressFrom)
	values.assignText("email_text_from", &system.EmailTextFrom, DefaultEmailTextFrom)
	values.assignText("email_alert_subject", &system.EmailAlertSubject, DefaultAlertSubject)
	values.assignRaw("email_alert_body", &system.EmailAlertBody, DefaultEmailAlertBody)

	defaultMQTTPort := DefaultMQTTPort
	problems.add(values.assignFlag("mqtt_enabled", &system.MQTTEnabled))
	values.assignText("mqtt_hostname", &system.MQTTHostname, "")
	problems.add(values.assignOptionalInt("mqtt_port", &system.MQTTPort, &defaultMQTTPort))
	values.assignText("mqtt_username", &system.MQTTUsername, "")
	values.assignRaw("mqtt_password", &system.MQTTPassword, "")

	problems.add(values.assignFlag("pushover_enabled", &system.PushoverEnabled))
	values.assignText("pushover_all_group_token", &system.PushoverAllGroupToken, "")
	values.assignText("pushover_all_app_token", &system.PushoverAllAppToken, "")
	values.assignText("pushover_subject", &system.PushoverSubject, DefaultAlertSubject)
	values.assignRaw("pushover_body", &system.PushoverBody, DefaultPushoverBody)
	values.assignText("pushover_sound", &system.PushoverSound, DefaultPushoverSound)

	problems.add(values.assignFlag("facebook_enabled", &system.FacebookEnabled))
	values.assignText("facebook_page_id", &system.FacebookPageID, "")
	values.assignText("facebook_page_token", &system.FacebookPageToken, "")
	values.assignText("facebook_group_id", &system.FacebookGroupID, "")
	values.assignText("facebook_group_token", &system.FacebookGroupToken, "")
	problems.add(values.assignFlag("facebook_comment_enabled", &system.FacebookCommentEnabled))
	values.assignRaw("facebook_post_body", &system.FacebookPostBody, DefaultFacebookPostBody)
	values.assignRaw("facebook_comment_body", &system.FacebookCommentBody, DefaultFacebookCommentBody)

	problems.add(values.assignFlag("telegram_enabled", &system.TelegramEnabled))
	values.assignText("telegram_bot_token", &system.TelegramBotToken, "")
	values.assignText("telegram_channel_id", &system.TelegramChannelID, "")

	problems.add(values.assignFlag("scp_enabled", &system.SCPEnabled))
	values.assignText("scp_host", &system.SCPHost, "")
	problems.add(values.assignOptionalInt("scp_port", &system.SCPPort, nil))
	values.assignText("scp_username", &system.SCPUsername, "")
	values.assignRaw("scp_password", &system.SCPPassword, "")
	values.assignRaw("scp_private_key", &system.SCPPrivateKey, "")
	values.assignText("scp_remote_folder", &system.SCPRemoteFolder, "")
	values.assignText("web_url_path", &system.WebURLPath, "")
	problems.add(values.assignInt("scp_archive_days", &system.SCPArchiveDays, 0))

	problems.add(values.assignFlag("webhook_enabled", &system.WebhookEnabled))
	values.assignText("webhook_url", &system.WebhookURL, "")
	problems.add(values.assignHeaders("webhook_headers", &system.WebhookHeadersJSON))

	values.assignText("stream_url", &system.StreamURL, "")

	return problems.err()
}

func applyAgencyValues(agency *model.Agency, values formValues) error {
	var problems fieldErrors

	values.assignText("agency_code", &agency.AgencyCode, "")
	values.assignText("agency_name", &agency.AgencyName, "")

	problems.add(values.assignOptionalFloat("a_tone", &agency.ATone))
	problems.add(values.assignOptionalFloat("b_tone", &agency.BTone))
	problems.add(values.assignOptionalFloat("c_tone", &agency.CTone))
	problems.add(values.assignOptionalFloat("d_tone", &agency.DTone))
	problems.add(values.assignFloat("tone_tolerance", &agency.ToneTolerance, storage.DefaultToneTolerance))
	problems.add(values.assignFloat("ignore_time", &agency.IgnoreTime, storage.DefaultIgnoreTime))

	values.assignText("mqtt_topic", &agency.MQTTTopic, "")
	values.assignRaw("mqtt_start_alert_message", &agency.MQTTStartAlertMessage, "")
	values.assignRaw("mqtt_end_alert_message", &agency.MQTTEndAlertMessage, "")
	problems.add(values.assignFloat("mqtt_message_interval", &agency.MQTTMessageInterval, DefaultMQTTMessageInterval))

	values.assignText("pushover_group_token", &agency.PushoverGroupToken, "")
	values.assignText("pushover_app_token", &agency.PushoverAppToken, "")
	values.assignText("pushover_subject", &agency.PushoverSubject, "")
	values.assignRaw("pushover_body", &agency.PushoverBody, "")
	values.assignText("pushover_sound", &agency.PushoverSound, "")

	values.assignText("webhook_url", &agency.WebhookURL, "")
	problems.add(values.assignHeaders("webhook_headers", &agency.WebhookHeadersJSON))

	problems.add(values.assignFlag("enable_facebook_post", &agency.EnableFacebookPost))
	problems.add(values.assignFlag("enable_telegram_post", &agency.EnableTelegramPost))

	return problems.err()
}
