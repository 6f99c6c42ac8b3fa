// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing sessions, events and scripted agents.
// They are not intended for production usage.
package testutil
