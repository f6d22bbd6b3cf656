// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import "github.com/cockroachdb/errors"

// package errors
var (
	// ErrEnumerationFailure means the capability query failed or found no devices.
	ErrEnumerationFailure = errors.New("device enumeration failed")
	// ErrNoSuitableDevice means every enumerated device was rejected.
	ErrNoSuitableDevice = errors.New("no suitable device")
	// ErrExtensionOrLayerMissing means the backend instance itself lacks
	// a required extension or layer.
	ErrExtensionOrLayerMissing = errors.New("required instance extension or layer missing")
)
