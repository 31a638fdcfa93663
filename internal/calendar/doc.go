// Package calendar talks to the external calendar provider (Google Calendar v3).
//
// A Connector turns a principal's long-lived refresh credential into a
// Provider; the Provider exposes the three event operations the sync engine
// needs: insert, patch and delete, all keyed by calendar id and event id.
package calendar
