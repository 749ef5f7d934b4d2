// common/service.go
package common

import (
	"github.com/YaganovValera/crypto-realtime/common/backoff"
	producer "github.com/YaganovValera/crypto-realtime/common/kafka/producer"
)

// InitServiceName проставляет лейбл service в метриках backoff и producer.
// Вызывать до первого Execute/Publish: лейбл читается без синхронизации.
func InitServiceName(name string) {
	if name == "" {
		name = "unknown"
	}
	backoff.SetServiceLabel(name)
	producer.SetServiceLabel(name)
}
