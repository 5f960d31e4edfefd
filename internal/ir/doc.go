// Package ir provides the value and schema types shared by every layer of
// the store.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - attribute numbers are int64
//   - Object keys serialize in RFC 8785 order (UTF-16 code units)
//   - Strings are NFC normalized at the canonical serialization boundary
//   - A Model is immutable once built; its Hash identifies it on disk
package ir
