// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing messages and seeding stores. They are not
// intended for production usage.
package testutil
