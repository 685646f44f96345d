// Package gateway implements the HTTP contracts of the reporting gateway.
//
// Two revisions of the API exist and both are supported behind the Client
// interface, selected with the gateway.api configuration key:
//
//   - v1: POST /api/v1/file, POST /api/v1/task, GET /api/v1/task/{id} and
//     GET /api/v1/file/{id} with JSON envelopes {success, operationId, results}
//   - legacy: POST /upload (multipart), POST /task and GET /task/{id} with
//     JSON-string encoded bodies, GET /download/{id} returning one zip
//
// Status samples are decoded into a closed set of status tags; an unknown
// tag fails decoding with an *UnknownStatusError.
package gateway
