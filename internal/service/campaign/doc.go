// Package campaign implements recurring campaign lifecycle management.
//
// The service layer contains all business logic for creating, activating,
// editing, and cancelling campaigns. It depends on the Repository interface
// defined in this package and should never import from api/.
//
// The Postgres implementation lives in repository/postgres/.
package campaign
