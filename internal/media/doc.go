// Package media persists the movie catalog, subtitle records, sync run
// tracking, and linguistic analysis results in Postgres.
//
// The Store owns a pgx connection pool and an embedded schema guarded by a
// schema_version table. Movies are keyed by TMDB ID and upserted during
// sync runs; title search combines trigram similarity for short queries
// with full-text ranking for longer ones.
package media
