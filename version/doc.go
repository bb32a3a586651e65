// Package version exposes build information of the runemaster binary.
//
//	go build -ldflags "-X github.com/kbukum/runemaster/version.Version=1.2.0" ./cmd/runemaster
package version
