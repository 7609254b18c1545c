// Package gpio provides button input and digital output lines with hardware
// abstraction. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader samples the button line.
type Reader interface {
	// Read returns the raw logic level of the button line.
	// The button is active-low: true = released (pulled up), false = pressed.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Output drives a single digital line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error

	// Close releases GPIO resources.
	Close() error
}

// Line defaults (BCM numbering on gpiochip0).
const (
	DefaultChip      = "gpiochip0"
	DefaultButtonPin = 27
	DefaultDirPin    = 26
)
