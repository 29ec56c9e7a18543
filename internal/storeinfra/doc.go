// Package storeinfra opens the authoritative stores with an explicit
// lifecycle: the caller connects, passes the handle to the components that
// need it and closes it on shutdown.
package storeinfra
