// Package cli wires the meetstream commands: live recording, device
// enumeration, environment checks, batch import, and meeting listing.
package cli
