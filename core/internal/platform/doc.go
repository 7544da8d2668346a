// Package platform isolates operating-system specific file access.
package platform
