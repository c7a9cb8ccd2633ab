// Package httprpc implements the controller's two outbound RPC boundaries,
// MetastoreClient and IngesterClient, as plain JSON-over-HTTP calls.
//
// The rest of the stack favors connect-RPC for service boundaries, but that
// requires buf/protoc-generated stubs this build has no way to produce.
// Rather than fabricate a generated client, the wire layer here is a thin
// net/http + encoding/json request/response pair per RPC; the message
// shapes themselves are exactly the structs controlplane.types.go already
// defines, so swapping this package for a generated connect client later is
// a matter of re-pointing controlplane.MetastoreClient/IngesterClient, not
// redesigning the domain.
package httprpc
