// Package version reports the mlkit build. Version and BuildTime are set
// at link time; the commit and dirty flag come from the module build info
// when not set explicitly:
//
//	go build -ldflags "-X github.com/kbukum/mlkit/version.Version=0.3.0" ./cmd/mlkit
package version
