// Package testutil contains helper builders used across tests to reduce
// boilerplate when writing canvas documents and scripting completion
// providers. These helpers are intentionally minimal. They are not intended
// for production usage.
package testutil
