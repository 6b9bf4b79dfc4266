// Package services holds the error taxonomy and context helpers shared by
// the transfer components.
package services
