// Package i18n localizes the user-facing response messages. The storefront
// ships a bilingual UI (Vietnamese/English), so the API carries both
// catalogs and picks a language by matching the request's Accept-Language
// header against the supported set.
package i18n

import "golang.org/x/text/language"

// Message keys used by the HTTP layer.
const (
	KeyCancelSuccess    = "cancel.success"
	KeyCancelDeclined   = "cancel.declined"
	KeyServerError      = "error.server"
	KeyCustomerLookup   = "error.customer_lookup"
	KeySystem           = "context.system"
	KeyUpdateSuccess    = "update.success"
	KeyUpdateNotApplied = "update.not_applied"
)

// supported lists the languages with catalogs; the first entry is the
// fallback for unmatched or absent Accept-Language values.
var supported = []language.Tag{
	language.English,
	language.Vietnamese,
}

var matcher = language.NewMatcher(supported)

var catalogs = map[language.Tag]map[string]string{
	language.English: {
		KeyCancelSuccess:    "Order cancelled successfully!",
		KeyCancelDeclined:   "Cancellation declined",
		KeyServerError:      "Server error",
		KeyCustomerLookup:   "Could not load profile",
		KeySystem:           "System",
		KeyUpdateSuccess:    "Profile updated successfully!",
		KeyUpdateNotApplied: "The update was not applied",
	},
	language.Vietnamese: {
		KeyCancelSuccess:    "Huỷ đơn hàng thành công!",
		KeyCancelDeclined:   "Không huỷ đơn hàng",
		KeyServerError:      "Lỗi server",
		KeyCustomerLookup:   "Lỗi thông tin",
		KeySystem:           "Hệ thống",
		KeyUpdateSuccess:    "Cập nhật thông tin thành công!",
		KeyUpdateNotApplied: "Có lỗi xảy ra!",
	},
}

// Match resolves an Accept-Language header value to a supported language.
func Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return supported[0]
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// T returns the message for key in the given language, falling back to
// English, then to the key itself for unknown keys.
func T(tag language.Tag, key string) string {
	if cat, ok := catalogs[tag]; ok {
		if msg, ok := cat[key]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[language.English][key]; ok {
		return msg
	}
	return key
}
