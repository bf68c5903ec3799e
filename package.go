// Package rehire is a tool for testing code that is loaded as a unit by a module
// system, where the unit pulls in its own dependencies at load time and keeps
// its interesting state in private bindings.
//
// Rehire loads a fresh copy of a unit while a set of its dependencies are
// replaced by test doubles in the host's module cache. The cache is restored
// before Load returns, whether the load succeeded or not, so no test double
// leaks into other tests.
//
// The returned [Handle] gives access to the unit's private bindings. Bindings
// can be overridden any number of times; [Handle.Reset] always restores the
// value that existed before the first override.
//
// The module system itself is supplied by a [Host]. Package
// github.com/gost-dom/rehire/luahost provides one for Lua scripts.
package rehire
