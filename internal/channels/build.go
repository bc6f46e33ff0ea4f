package channels

import (
	"fmt"
	"net/http"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// Build turns the configured chain into drivers, keeping the order.
func Build(cfgs []model.ChannelConfig, platform Platform, client *http.Client) ([]Driver, error) {
	drivers := make([]Driver, 0, len(cfgs))
	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("channel %q: %w", c.Name, err)
		}
		switch c.Kind {
		case model.ChannelSpooler:
			drivers = append(drivers, NewSpooler(c.Name, c.Printer, platform, c.Timeout))
		case model.ChannelRawPort:
			drivers = append(drivers, NewRawPort(c.Name, c.Port, platform, c.Timeout))
		case model.ChannelRelay:
			drivers = append(drivers, NewRelay(c.Name, c.URL, c.Headers, client, c.Timeout))
		case model.ChannelWebhook:
			drivers = append(drivers, NewWebhook(c.Name, c.URL, c.Headers, client, c.Timeout))
		case model.ChannelNATS:
			drivers = append(drivers, NewNATS(c.Name, c.URL, c.Subject, c.Timeout))
		}
	}
	return drivers, nil
}
