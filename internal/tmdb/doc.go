// Package tmdb provides a rate-limited client for The Movie Database API.
//
// Requests share a rolling one-second window limiter. Rate limit responses
// trigger an exponential backoff before the request is retried, up to a
// configurable cap. Discover results for a whole year are walked in quarterly
// release-date windows because TMDB rejects pagination past page 500.
package tmdb
