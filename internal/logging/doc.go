// Package logging wraps a process-wide zerolog logger behind printf-style
// Debug, Info, Warn, Error and Fatal calls.
//
// LOG_LEVEL (debug, info, warn, error) sets the threshold, and DEBUG=true is
// shorthand for debug. Output goes to a console writer unless LOG_FORMAT=json
// selects JSON lines. SetLevel and SetOutput change both at runtime; tests
// use them to capture output.
package logging
