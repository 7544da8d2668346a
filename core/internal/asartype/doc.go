// Package asartype holds the types and sentinel errors shared between the
// archive engine's internal packages and the public core package.
package asartype
