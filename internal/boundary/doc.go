// Package boundary locates the homily window inside a service transcript by
// scanning timed cues for configured liturgical transition phrases.
package boundary
