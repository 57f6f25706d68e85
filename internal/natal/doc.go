// Package natal stores users' natal charts and the optional profile fields
// used to personalise alerts. Charts are computed elsewhere and written here
// as plain positions.
package natal
