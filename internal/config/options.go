package config

import "mnemo/internal/logging"

// LoggerOptions converts the logging section into logging.Options. An empty
// category list enables everything; a non-empty list enables only what it
// names.
func (l LoggingConfig) LoggerOptions() logging.Options {
	o := logging.Options{
		Debug:      l.Debug,
		Level:      l.Level,
		JSONFormat: l.Format == "json",
	}
	if len(l.Categories) > 0 {
		o.Categories = make(map[string]bool, len(logging.AllCategories))
		for _, cat := range logging.AllCategories {
			o.Categories[string(cat)] = false
		}
		for _, name := range l.Categories {
			o.Categories[name] = true
		}
	}
	return o
}
