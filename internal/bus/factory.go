package bus

import (
	"fmt"
	"strings"

	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
)

// NewBus creates a new Bus instance based on the configuration. When an
// event log is configured the bus is wrapped in a LoggedBus.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	log = logger.OrDefault(log)

	var b Bus
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		b = NewMemoryBus(log)

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "hyperast"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			Log:           log,
		})
		if err != nil {
			return nil, err
		}
		b = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.EventLog == "" {
		return b, nil
	}
	el, err := NewEventLogger(cfg.EventLog, true)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return NewLoggedBus(b, el, log), nil
}
