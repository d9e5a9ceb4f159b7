// Package httpapi exposes the batch trigger and run status over HTTP using
// gin. A trigger acknowledges immediately; the run continues in the
// background after the response is written.
package httpapi
