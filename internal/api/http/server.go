package httpapi

import (
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
)

// Serve binds addr before returning and serves app in the background, so
// requests made right after Serve returns (including the app's own, through
// the proxy routes) are accepted. The channel yields the error that stopped
// the server.
func Serve(app *fiber.App, addr string) (net.Addr, <-chan error, error) {
	ln, err := net.Listen(fiber.NetworkTCP4, addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	stopped := make(chan error, 1)
	go func() {
		stopped <- app.Listener(ln)
	}()
	return ln.Addr(), stopped, nil
}
