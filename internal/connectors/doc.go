// Package connectors holds the clients for the third-party APIs the
// ingestor pulls data from. Each connector implements a driven port so the
// core never depends on a concrete API.
package connectors
