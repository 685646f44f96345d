// Package mockgateway serves an in-memory reporting gateway over HTTP.
//
// It implements both wire contracts the harness speaks (the /api/v1 JSON
// envelope API and the legacy string-encoded API) and is used by the
// gateway and job tests as well as by the `mock-gateway` command, which lets
// a test tree be exercised without the real gateway image.
package mockgateway
