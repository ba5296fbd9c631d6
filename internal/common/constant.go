// Package common contains shared constants and sentinel errors used across
// reviewflow components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on inbound requests.
const AccessTokenHeaderName = "access_token"

// ServiceName identifies the server in traces and logs.
const ServiceName = "reviewflow"
