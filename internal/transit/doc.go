// Package transit detects astrologically significant transits for a user.
// It compares the transiting positions for a date against the user's natal
// chart in three passes (transiting pairs, natal planets, ascendant), ranks
// every match with the significance rule tables and estimates how long each
// influence lasts.
package transit
