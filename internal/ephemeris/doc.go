// Package ephemeris supplies transiting planetary positions for a date.
// Positions are computed elsewhere; this package only fetches them, either
// from an HTTP positions service or from a YAML file of dated snapshots.
package ephemeris
