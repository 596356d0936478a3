// Package native binds librpm.Engine to the system librpm through cgo.
//
// The binding is compiled only with the "librpm" build tag and needs the rpm
// development headers (rpm-devel) at build time and librpm 4.12 or later at
// run time:
//
//	go build -tags librpm ./...
//
// Importing the package registers the engine as "native".
package native
