// Package redis stores authority state in Redis so that several
// authority replicas can share a persistent store (one active writer at a
// time). Keys are namespaced with a configurable prefix; batches are
// applied with MULTI/EXEC.
package redis
