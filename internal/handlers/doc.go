// Package handlers implements the operational HTTP endpoints.
package handlers
