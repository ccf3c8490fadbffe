package kafka

import (
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderOriginalQueue     = "x-original-queue"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderDeliveryAttempts  = "x-delivery-attempts"
	HeaderFailureReason     = "x-failure-reason"
)

// DeadLetterQueue names the inspection queue for a source queue.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// deadLetterMessage keeps key, value and headers of the original message and
// adds the failure context.
func deadLetterMessage(queue string, m kafka.Message, attempts int, cause error) kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers)+5)
	headers = append(headers, m.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalQueue, Value: []byte(queue)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(m.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(m.Offset, 10))},
		kafka.Header{Key: HeaderDeliveryAttempts, Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: HeaderFailureReason, Value: []byte(cause.Error())},
	)
	return kafka.Message{
		Topic:   DeadLetterQueue(queue),
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
		Time:    time.Now(),
	}
}
