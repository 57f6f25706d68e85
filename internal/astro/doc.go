// Package astro holds the vocabulary shared by detection and generation:
// celestial bodies, aspects, position snapshots and natal charts, plus the
// circular-angle geometry every detection pass is built on.
package astro
