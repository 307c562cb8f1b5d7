// Package logger provides structured logging for the segmentation engines.
package logger

// Logger provides structured logging with per-component context.
type Logger interface {
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
	Debug(component, message string, fields map[string]interface{})
}

// Nop is a Logger that discards everything. Engines fall back to it when
// the caller passes a nil logger.
type Nop struct{}

func (Nop) Info(string, string, map[string]interface{})    {}
func (Nop) Warning(string, string, map[string]interface{}) {}
func (Nop) Error(string, error, map[string]interface{})    {}
func (Nop) Debug(string, string, map[string]interface{})   {}

// OrNop returns l unchanged if non-nil, otherwise a Nop logger.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}
