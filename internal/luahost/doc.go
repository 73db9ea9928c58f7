// Package luahost runs extension setup entry points. An installed
// extension may ship an init.lua whose setup(config) function receives
// the manifest's config payload when the activator loads it. This is the
// default SetupFunc wired into the activator.
package luahost
