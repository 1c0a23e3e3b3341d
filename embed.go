// Package tremormonitor holds build-time assets embedded into the
// binary: the static HTML catalog browser the read API serves at "/"
// (§1's "HTML catalog browser" surface item), grounded on the teacher's
// root-level embed.go (package trengine, //go:embed web/*).
package tremormonitor

import "embed"

//go:embed web/*
var WebFiles embed.FS
