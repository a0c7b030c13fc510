// Package server exposes the controller's management HTTP API.
//
// The API has three surfaces: the provisioning interface (content
// hosting configurations, certificates, cache purges), the internal
// redirect endpoints the data path calls to allocate and resolve
// ephemeral redirect entries, and the operational endpoints (health,
// metrics). Errors are rendered as RFC 7807 problem details.
package server
