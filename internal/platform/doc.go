// Package platform isolates the OS-specific pieces of running extension
// build scripts and managing file permissions. On Unix, scripts run under
// sh and permission bits apply directly; on Windows, scripts run under
// cmd and chmod is a no-op.
package platform
