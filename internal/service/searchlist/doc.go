// Package searchlist stores saved search lists in the CustomerSearchLists
// collection of the document store.
//
// Built-in system lists are not persisted: they are materialized from
// segmentation.SystemLists on every read, always listed first and reject
// updates and deletes.
package searchlist
