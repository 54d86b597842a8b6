//go:build !debug

package errors

const debugBuild = false
