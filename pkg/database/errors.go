// Copyright 2025 Omnilock Labs
//
// Database Errors

package database

import "errors"

// ErrMessageNotFound is returned when a nonce has no message row
var ErrMessageNotFound = errors.New("message not found")
