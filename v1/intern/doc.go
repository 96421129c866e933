// Package intern maps equal values onto one shared lock handle. Entries are
// reference counted: every Intern is paired with a Release, and the last
// Release removes the entry, so values that are no longer in use never keep
// memory alive. The table is sharded so unrelated keys rarely contend on the
// registry itself.
package intern
