// Package domain holds the core entities shared across services and workers.
//
// Types here carry no behavior beyond validation and pure derivations.
// Persistence lives in repository/, business rules in service/.
package domain
