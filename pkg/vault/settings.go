package vault

// Settings is the vault's own configuration record (spec.md §6), distinct
// from the host-level config.json handled by internal/hostconfig.
type Settings struct {
	AutoLockMinutes        int    `json:"auto_lock_minutes"`
	ClipboardClearSeconds  int    `json:"clipboard_clear_seconds"`
	MaskKeys               bool   `json:"mask_keys"`
	EnableAuditLog         bool   `json:"enable_audit_log"`
	EnableAutoFill         bool   `json:"enable_auto_fill"`
	ShowUsageStats         bool   `json:"show_usage_stats"`
	ShowExpirationWarnings bool   `json:"show_expiration_warnings"`
	ExpirationWarningDays  int    `json:"expiration_warning_days"`
	Theme                  string `json:"theme"`
}

// DefaultSettings returns the settings record written by initialize.
func DefaultSettings() Settings {
	return Settings{
		AutoLockMinutes:        15,
		ClipboardClearSeconds:  30,
		MaskKeys:               true,
		EnableAuditLog:         true,
		EnableAutoFill:         false,
		ShowUsageStats:         true,
		ShowExpirationWarnings: true,
		ExpirationWarningDays:  14,
		Theme:                  "auto",
	}
}

func validateSettings(s Settings) error {
	if s.AutoLockMinutes < 0 {
		return validationErr("auto_lock_minutes", "must be non-negative")
	}
	if s.ClipboardClearSeconds < 0 {
		return validationErr("clipboard_clear_seconds", "must be non-negative")
	}
	if s.ExpirationWarningDays < 0 {
		return validationErr("expiration_warning_days", "must be non-negative")
	}
	switch s.Theme {
	case "light", "dark", "auto", "":
	default:
		return validationErr("theme", "must be one of light, dark, auto")
	}
	return nil
}
