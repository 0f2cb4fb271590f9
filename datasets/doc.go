// Package datasets generates small, seeded synthetic datasets for examples,
// tests and the CLI demo mode. The same seed always yields the same frame.
package datasets
