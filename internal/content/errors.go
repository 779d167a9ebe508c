// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"fmt"

	"github.com/olegiv/wellness-site/internal/backend"
)

// RemoteError is a rejection by the persistence service. Its message is
// the service's own reason.
type RemoteError struct {
	Entity string
	Op     string
	Err    error
}

func (e *RemoteError) Error() string {
	return e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Code returns the service's error code, if any.
func (e *RemoteError) Code() backend.Code {
	return backend.CodeOf(e.Err)
}

// ConfigurationError means storage is unreachable, so no upload can work
// until an operator fixes it.
type ConfigurationError struct {
	Bucket string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("Video storage bucket %q is not available. Please check the storage configuration.", e.Bucket)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func remote(entity, op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Entity: entity, Op: op, Err: err}
}
