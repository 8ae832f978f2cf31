// Package validation coerces operator input (capacity, burst size) into
// valid values and reports the few inputs that cannot be coerced.
package validation
