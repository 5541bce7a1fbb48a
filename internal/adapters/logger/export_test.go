// export_test.go exports private functions for white-box testing.
package logger

var (
	CollectErrorEntries = collectErrorEntries
	FormatErrorEntries  = formatErrorEntries
)

var NewConsoleHandler = newConsoleHandler
