// Ganymede is a control-plane controller for media content hosting.
//
// It turns declarative provisioning records into a complete nginx
// configuration, supervises the proxy process with zero-downtime
// reloads and rollback, and maintains an expiring redirect table for
// ephemeral data-path entry points.
//
// Usage:
//
//	# Start the controller with default configuration
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /etc/ganymede/config.yaml
//
//	# Render the proxy configuration for a set of session records
//	ganymede render S1.json S2.json --output nginx.conf
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
