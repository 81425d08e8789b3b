// Package compare scores normalized homily texts from the same weekend group
// against each other and flags pairs whose similarity falls below the
// configured deviation threshold.
package compare
