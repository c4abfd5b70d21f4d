package enums

import "fmt"

// GatewayEventType is the closed set of webhook events the gateway delivers.
// Anything else is acknowledged as unknown, never silently dropped.
type GatewayEventType string

const (
	GatewayEventChargeCompleted   GatewayEventType = "charge.completed"
	GatewayEventChargeFailed      GatewayEventType = "charge.failed"
	GatewayEventTransferCompleted GatewayEventType = "transfer.completed"
	GatewayEventTransferFailed    GatewayEventType = "transfer.failed"
)

var validGatewayEventTypes = []GatewayEventType{
	GatewayEventChargeCompleted,
	GatewayEventChargeFailed,
	GatewayEventTransferCompleted,
	GatewayEventTransferFailed,
}

// String implements fmt.Stringer.
func (t GatewayEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known GatewayEventType.
func (t GatewayEventType) IsValid() bool {
	for _, candidate := range validGatewayEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseGatewayEventType converts raw input into a GatewayEventType.
func ParseGatewayEventType(value string) (GatewayEventType, error) {
	for _, candidate := range validGatewayEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unknown gateway event type %q", value)
}
