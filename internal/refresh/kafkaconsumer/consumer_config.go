package kafkaconsumer

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/passmap/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
}

// FromRefresh starts new groups at the head: a missed refresh only means
// stale paths until the next one.
func FromRefresh(rc config.RefreshCfg) Config {
	return Config{
		Brokers:             splitCSV(rc.Brokers),
		Topic:               rc.Topic,
		GroupID:             rc.GroupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		DedupeSize:          256,
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
