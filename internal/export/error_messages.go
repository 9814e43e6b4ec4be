package export

// error_messages.go maps technical export errors to user-facing messages
// with support codes.
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - System busy: Too many exports in progress
//	         Patterns: "too many concurrent exports"
//
//	EXP002 - Export cancelled: The client went away or cancelled
//	         Patterns: "context canceled"
//
//	EXP003 - Export timeout: The export ran longer than allowed
//	         Patterns: "context deadline exceeded"
//
//	EXP004 - Inconsistent data: Rows arrived out of order
//	         Patterns: "rows out of order"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid date: startDate or endDate could not be parsed
//	         Patterns: "invalid date"
//
//	REQ002 - Invalid range: startDate is after endDate
//	         Patterns: "invalid date range"
//
// # Database Errors (DB004-DB006)
//
//	DB004 - Connection refused     Patterns: "connection refused"
//	DB005 - Connection reset       Patterns: "connection reset"
//	DB006 - Timeout                Patterns: "timeout"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests    Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Export errors
	{
		pattern: "too many concurrent exports",
		msg: UserMessage{
			Message: "System is busy running other exports",
			Action:  "Please wait a moment and try again",
			Code:    "EXP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Export was cancelled",
			Action:  "Start a new export when ready",
			Code:    "EXP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Export timed out",
			Action:  "Narrow the date range and try again",
			Code:    "EXP003",
		},
	},
	{
		pattern: "rows out of order",
		msg: UserMessage{
			Message: "Order data changed while exporting",
			Action:  "Please try again or contact support",
			Code:    "EXP004",
		},
	},

	// Request errors. The range pattern must precede the generic date one.
	{
		pattern: "invalid date range",
		msg: UserMessage{
			Message: "Start date is after end date",
			Action:  "Choose a start date on or before the end date",
			Code:    "REQ002",
		},
	},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format",
			Action:  "Use YYYY-MM-DD, YYYY-MM-DDTHH:MM or an RFC 3339 timestamp",
			Code:    "REQ001",
		},
	},

	// Database connection errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Narrow the date range or try again later",
			Code:    "DB006",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
