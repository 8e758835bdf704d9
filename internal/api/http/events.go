package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/i474232898/clock-weather/internal/weather"
)

const keepAliveInterval = 25 * time.Second

// streamEvents pushes every cache update to the client as server-sent
// events. The stream ends when the client goes away.
func streamEvents(service *weather.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set(fiber.HeaderTransferEncoding, "chunked")

		updates, unsubscribe := service.Subscribe()
		c.Context().SetBodyStreamWriter(eventStream(service.Status(), updates, unsubscribe, keepAliveInterval))
		return nil
	}
}

// eventStream writes the status frame, then every update and a keepalive
// comment when idle. It unsubscribes once the updates close or a write fails.
func eventStream(status weather.Status, updates <-chan weather.Update, unsubscribe func(), keepAlive time.Duration) fasthttp.StreamWriter {
	return func(w *bufio.Writer) {
		defer unsubscribe()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		if err := writeStatus(w, status); err != nil {
			return
		}
		for {
			var err error
			select {
			case u, ok := <-updates:
				if !ok {
					return
				}
				err = writeEvent(w, u)
			case <-ticker.C:
				_, err = io.WriteString(w, ": keepalive\n\n")
			}
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				return
			}
		}
	}
}

func writeStatus(w *bufio.Writer, st weather.Status) error {
	if err := writeSSE(w, "status", st); err != nil {
		return err
	}
	return w.Flush()
}

// writeEvent renders one cache update: a "weather" event carrying the
// normalized snapshot, or an "error" event when the fetch failed.
func writeEvent(w io.Writer, u weather.Update) error {
	if u.Err != nil {
		return writeSSE(w, "error", fiber.Map{
			"message": errorMessage(u.Err),
			"status":  statusFor(u.Err),
		})
	}
	return writeSSE(w, "weather", weather.Summarize(u.Payload, u.FetchedAt, weather.DefaultHourlyPoints))
}

func writeSSE(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
