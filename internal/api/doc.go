// Package api is the HTTP client for the meeting backend's REST surface:
// meeting listing, stored transcripts, summaries, detection settings, and the
// batch recording upload. The realtime streaming path lives in the session
// package; everything here is request/response.
package api
