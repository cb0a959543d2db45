// Package service runs the drop-directory processing loop.
package service
