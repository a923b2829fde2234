package workers

import "github.com/ys-23412/sbcontest2/models"

// LogFunc writes a worker message to the scrape_logs ledger.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
