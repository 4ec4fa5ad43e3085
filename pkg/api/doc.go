// Package api defines the request and response messages of the teamtab
// Connect services. Messages travel as JSON; amounts are decimal strings
// with two fractional digits and dates are YYYY-MM-DD.
package api
