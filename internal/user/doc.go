// Package user is the user directory: the users table, its repository, and
// the registration/login service built on top of it.
package user
