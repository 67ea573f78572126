package common

// LookupSetting retrieves a non-empty value from a key/value settings map.
// Keys are checked in order - first non-empty match wins.
func LookupSetting(settings map[string]string, keys ...string) (string, bool) {
	if settings == nil {
		return "", false
	}
	for _, key := range keys {
		if value, ok := settings[key]; ok && value != "" {
			return value, true
		}
	}
	return "", false
}

// LookupSettingWithDefault retrieves a value from settings, or returns defaultValue.
func LookupSettingWithDefault(settings map[string]string, defaultValue string, keys ...string) string {
	if value, ok := LookupSetting(settings, keys...); ok {
		return value
	}
	return defaultValue
}
