package kafka

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/jobline/pkg/events"
)

// partitionKey keeps every event of one job on one partition so completions
// for a job are consumed in publish order.
func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(events.EventMetadataKey), nil
}
