// Package logging builds the bridge's structured logger on log/slog.
//
// Output is JSON by default and text when logging.format is "text". Every
// entry carries service and version fields, and appearance codes are
// rendered as hex so they can be matched against the GAP assigned numbers.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
