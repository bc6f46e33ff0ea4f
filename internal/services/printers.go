package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/channels"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/utils"
)

// --- Discovery Logic ---

// DiscoverPrinters scans the /24 of subnet (or of the local address when
// subnet is empty) and returns one rawport channel per printer found.
func DiscoverPrinters(ctx context.Context, subnet string, logger *slog.Logger) ([]model.ChannelConfig, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if subnet == "" {
		localIP, err := utils.DetectLocalIP()
		if err != nil {
			return nil, fmt.Errorf("detect local IP: %w", err)
		}
		if subnet, err = utils.SubnetOf(localIP); err != nil {
			return nil, err
		}
	}

	logger.Info("scanning subnet", "subnet", subnet+".0/24", "port", channels.DefaultRawPort)
	hosts := utils.ScanSubnet(ctx, subnet, utils.ScanOptions{Port: channels.DefaultRawPort})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found := make([]model.ChannelConfig, 0, len(hosts))
	for _, host := range hosts {
		logger.Info("found printer", "host", host)
		found = append(found, PrinterChannel(host, channels.DefaultRawPort))
	}
	return found, nil
}

// PrinterChannel is the rawport channel for a network printer.
func PrinterChannel(host string, port int) model.ChannelConfig {
	return model.ChannelConfig{
		Name: "net-" + host,
		Kind: model.ChannelRawPort,
		Port: "tcp://" + net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// MergeChannels appends the discovered channels whose target is not already
// configured. Existing entries keep their position and settings; names are
// made unique.
func MergeChannels(existing, discovered []model.ChannelConfig) ([]model.ChannelConfig, int) {
	targets := make(map[string]bool, len(existing))
	names := make(map[string]bool, len(existing))
	for _, c := range existing {
		if c.Kind == model.ChannelRawPort {
			targets[c.Port] = true
		}
		names[c.Name] = true
	}

	merged := append([]model.ChannelConfig(nil), existing...)
	added := 0
	for _, c := range discovered {
		if targets[c.Port] {
			continue
		}
		base := c.Name
		for i := 2; names[c.Name]; i++ {
			c.Name = fmt.Sprintf("%s-%d", base, i)
		}
		targets[c.Port] = true
		names[c.Name] = true
		merged = append(merged, c)
		added++
	}
	return merged, added
}
