package ticket

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/saburov/airfare/internal/kafka"
)

// Renderer writes a ticket document per booked leg. Rendering is best effort
// downstream of a committed purchase; a failure here never touches the booking.
type Renderer struct {
	dir string
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

func (r *Renderer) Render(ctx context.Context, event kafka.TicketEvent) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create tickets dir: %w", err)
	}

	leg := "Outbound"
	if event.IsReturn {
		leg = "Return"
	}

	body := fmt.Sprintf("E-TICKET %s\n%s flight %s (%s)\nRoute: %s\nBooked: %s\nTotal paid: %.2f\nPassengers:\n",
		event.ReservationCode, leg, event.FlightCode, event.Airline, event.Route,
		event.BookedAt.Format("2006-01-02 15:04"), float64(event.PricePaidCents)/100)
	for i, p := range event.Passengers {
		body += fmt.Sprintf("  %d. %s", i+1, p.Name)
		if p.Age != nil {
			body += fmt.Sprintf(" (age %d)", *p.Age)
		}
		body += "\n"
	}

	path := filepath.Join(r.dir, fmt.Sprintf("ticket_%s.txt", event.ReservationCode))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write ticket %s: %w", event.ReservationCode, err)
	}
	return nil
}

// Path returns where the artifact for a reservation code lives, if rendered.
func (r *Renderer) Path(reservationCode string) string {
	return filepath.Join(r.dir, fmt.Sprintf("ticket_%s.txt", reservationCode))
}
