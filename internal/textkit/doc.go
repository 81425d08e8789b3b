// Package textkit provides transcript text canonicalization and
// term-frequency fingerprinting.
//
// Normalization applies Unicode NFKC, case folding, punctuation stripping,
// whitespace collapsing, and filler-word removal so that two renditions of
// the same spoken content reduce to comparable token streams. Fingerprints
// turn those streams into normalized term-frequency vectors for cosine
// similarity scoring.
package textkit
