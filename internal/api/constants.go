package api

// Version is the API version reported in the OpenAPI description and the
// health endpoint.
const Version = "1.0.0"
