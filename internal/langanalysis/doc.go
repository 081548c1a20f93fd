// Package langanalysis builds linguistic profiles from stored subtitles.
//
// A profile captures the vocabulary of a movie: content-word and phrasal
// verb concepts with reservoir-sampled example sentences, part-of-speech
// distribution, sentence statistics, and a difficulty estimate derived from
// an embedded word rating table. Profiles are versioned so the pipeline can
// recompute stale ones when extraction logic changes.
package langanalysis
