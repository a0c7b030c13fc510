// Package maintenance runs the controller's background jobs: periodic
// redirect table sweeps and supervised proxy health checks, both on
// cron schedules.
package maintenance
