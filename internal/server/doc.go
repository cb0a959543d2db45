// Package server wires the HTTP routes.
package server
