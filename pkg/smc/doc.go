// Package smc reads power related keys from the Apple System Management
// Controller. The connection is only available on darwin; the decoding
// helpers build everywhere.
package smc
