// Package platform binds the logger to a board: the RP2040 Pico on hardware
// builds, a simulated board on the host.
package platform
