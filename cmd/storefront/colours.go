package main

import "github.com/jrsteele09/go-storefront/notify"

const (
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m" // Reset to default color
)

var kindColors = map[notify.Kind]string{
	notify.KindSuccess: Green,
	notify.KindError:   Red,
	notify.KindInfo:    Blue,
}

func colour(c, s string) string {
	return c + s + ResetColor
}
