package escalation

import (
	"strconv"
	"strings"
)

// Notice templates are keyed by (channel, language). Placeholders:
// {support_handle} and {escalation_id}. Language codes are normalized to a
// lowercase two-letter code, stripping region suffixes; unknown languages
// fall back to English, unknown channels to the generic row.
const genericChannel = "generic"

var noticeTemplates = map[string]map[string]string{
	genericChannel: {
		"en": "Your question has been forwarded to our support team. A staff member will get back to you shortly. (Reference: #{escalation_id})",
		"de": "Ihre Frage wurde an unser Support-Team weitergeleitet. Ein Mitarbeiter meldet sich in Kürze bei Ihnen. (Referenz: #{escalation_id})",
		"es": "Su pregunta ha sido enviada a nuestro equipo de soporte. Un miembro del personal le responderá en breve. (Referencia: #{escalation_id})",
		"fr": "Votre question a été transmise à notre équipe d'assistance. Un membre du personnel vous répondra sous peu. (Référence : #{escalation_id})",
	},
	"web": {
		"en": "Your question has been forwarded to our support team. You will see the answer here as soon as a staff member responds. (Reference: #{escalation_id})",
		"de": "Ihre Frage wurde an unser Support-Team weitergeleitet. Die Antwort erscheint hier, sobald ein Mitarbeiter geantwortet hat. (Referenz: #{escalation_id})",
		"es": "Su pregunta ha sido enviada a nuestro equipo de soporte. La respuesta aparecerá aquí en cuanto un miembro del personal responda. (Referencia: #{escalation_id})",
		"fr": "Votre question a été transmise à notre équipe d'assistance. La réponse apparaîtra ici dès qu'un membre du personnel aura répondu. (Référence : #{escalation_id})",
	},
	"matrix": {
		"en": "Your question has been forwarded to our support team ({support_handle}). A staff member will reply in this room. (Reference: #{escalation_id})",
		"de": "Ihre Frage wurde an unser Support-Team ({support_handle}) weitergeleitet. Ein Mitarbeiter antwortet in diesem Raum. (Referenz: #{escalation_id})",
		"es": "Su pregunta ha sido enviada a nuestro equipo de soporte ({support_handle}). Un miembro del personal responderá en esta sala. (Referencia: #{escalation_id})",
		"fr": "Votre question a été transmise à notre équipe d'assistance ({support_handle}). Un membre du personnel répondra dans ce salon. (Référence : #{escalation_id})",
	},
	"tradeapp": {
		"en": "Your question has been forwarded to {support_handle}. You will receive the answer in this chat. (Reference: #{escalation_id})",
		"de": "Ihre Frage wurde an {support_handle} weitergeleitet. Sie erhalten die Antwort in diesem Chat. (Referenz: #{escalation_id})",
		"es": "Su pregunta ha sido enviada a {support_handle}. Recibirá la respuesta en este chat. (Referencia: #{escalation_id})",
		"fr": "Votre question a été transmise à {support_handle}. Vous recevrez la réponse dans ce chat. (Référence : #{escalation_id})",
	},
}

// NormalizeLanguage reduces a raw language tag to its lowercase two-letter
// base ("de-AT" -> "de"). Anything unusable becomes "en".
func NormalizeLanguage(raw string) string {
	lang := strings.ToLower(strings.TrimSpace(raw))
	for _, sep := range []string{"-", "_"} {
		if idx := strings.Index(lang, sep); idx > 0 {
			lang = lang[:idx]
		}
	}
	if len(lang) != 2 {
		return "en"
	}
	return lang
}

// RenderNotice builds the localized escalation notice for the channel.
func RenderNotice(channelID string, escalationID int64, supportHandle, lang string) string {
	templates, ok := noticeTemplates[channelID]
	if !ok {
		templates = noticeTemplates[genericChannel]
	}
	tpl, ok := templates[NormalizeLanguage(lang)]
	if !ok {
		tpl = templates["en"]
	}
	out := strings.ReplaceAll(tpl, "{escalation_id}", strconv.FormatInt(escalationID, 10))
	out = strings.ReplaceAll(out, "{support_handle}", supportHandle)
	return out
}
