// Package composer assembles the resource graph for the API stack.
//
// Compose is pure: it reads only its Settings argument, performs no I/O, and returns a
// fresh Graph value each call. Identical settings always produce deeply equal graphs, so
// the graph can be diffed, printed, or handed to a provisioning engine (see pkg/cdkstack)
// without the engine ever influencing what is declared.
package composer
