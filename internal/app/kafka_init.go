package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
)

// initKafkaProducer поднимает Kafka producer по списку брокеров из конфига.
// Kafka для сервиса опциональна: пустой список или недоступные брокеры
// означают работу без публикации событий, а не отказ в старте.
func initKafkaProducer(brokers string, logger *log.Entry) *kafka.Producer {
	var brokerList []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	if len(brokerList) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("kafka недоступна, события публиковаться не будут")
		return nil
	}

	logger.WithField("brokers", brokerList).Info("kafka producer инициализирован")
	return producer
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("ошибка при закрытии kafka producer")
		return
	}
	logger.Info("kafka producer закрыт")
}
