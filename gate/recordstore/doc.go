// Storage of per-user verification records.
//
// Includes an interface and implementations using in-process memory, redis, and SQL databases
// (through gorm). Plain writes are last-write-wins; PutIfVersion is available to callers which
// want optimistic concurrency control on read-modify-write cycles.
package recordstore
