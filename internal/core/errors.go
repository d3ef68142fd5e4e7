// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, matched with errors.Is across package boundaries.
var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("tyto: packet too short")
	ErrUnsupportedLink  = errors.New("tyto: unsupported link type")
	ErrUnsupportedProto = errors.New("tyto: unsupported protocol")
	ErrFragmented       = errors.New("tyto: fragmented datagram")

	// Capture source errors
	ErrSourceExhausted = errors.New("tyto: capture source exhausted")
	ErrBadCaptureFile  = errors.New("tyto: unreadable capture file")

	// Configuration errors
	ErrConfigInvalid = errors.New("tyto: invalid configuration")
)
