// Package storage provides the persistence collaborators of the quote flow:
// conversation history stores (in memory and PostgreSQL) and the internal
// catalog consulted before any provider is contacted.
package storage
